package handler

import (
	"net/http"
	"strconv"

	"github.com/hrdesk/hr-assistant/internal/middleware"
	"github.com/hrdesk/hr-assistant/internal/model"
	"github.com/hrdesk/hr-assistant/internal/service"
	"github.com/hrdesk/hr-assistant/internal/store"
	"github.com/hrdesk/hr-assistant/pkg/logger"
)

// KnowledgeHandler handles knowledge base and canned response endpoints.
type KnowledgeHandler struct {
	service *service.KnowledgeService
	logger  *logger.Logger
}

// NewKnowledgeHandler creates a new knowledge handler.
func NewKnowledgeHandler(svc *service.KnowledgeService, log *logger.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		service: svc,
		logger:  log,
	}
}

// ListArticles handles GET /api/v1/articles
func (h *KnowledgeHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r, 50, 200)
	q := r.URL.Query()
	includeInactive, _ := strconv.ParseBool(q.Get("include_inactive"))

	articles, err := h.service.ListArticles(r.Context(), store.ArticleFilter{
		Category:        q.Get("category"),
		Search:          q.Get("search"),
		IncludeInactive: includeInactive,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "list articles")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"articles": articles,
	})
}

// PopularArticles handles GET /api/v1/articles/popular
func (h *KnowledgeHandler) PopularArticles(w http.ResponseWriter, r *http.Request) {
	limit, _ := paging(r, 10, 50)
	articles, err := h.service.PopularArticles(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "load popular articles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"articles": articles,
	})
}

// GetArticle handles GET /api/v1/articles/:id
func (h *KnowledgeHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	article, err := h.service.GetArticle(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get article")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// CreateArticle handles POST /api/v1/articles
func (h *KnowledgeHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var req model.ArticleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	article, err := h.service.CreateArticle(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "create article")
		return
	}
	writeJSON(w, http.StatusCreated, article)
}

// UpdateArticle handles PUT /api/v1/articles/:id
func (h *KnowledgeHandler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.ArticleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	article, err := h.service.UpdateArticle(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "update article")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// DeleteArticle handles DELETE /api/v1/articles/:id
func (h *KnowledgeHandler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteArticle(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "delete article")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Categories handles GET /api/v1/categories
func (h *KnowledgeHandler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": h.service.Categories(),
	})
}

// Search handles GET /api/v1/search?q=
func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	preview, err := h.service.Preview(r.Context(), query)
	if err != nil {
		writeServiceError(w, h.logger, err, "search knowledge base")
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// ListResponses handles GET /api/v1/responses
func (h *KnowledgeHandler) ListResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := h.service.ListResponses(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "list responses")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"responses": responses,
	})
}

// CreateResponse handles POST /api/v1/responses
func (h *KnowledgeHandler) CreateResponse(w http.ResponseWriter, r *http.Request) {
	var req model.CannedResponseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := h.service.CreateResponse(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "create response")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// UpdateResponse handles PUT /api/v1/responses/:id
func (h *KnowledgeHandler) UpdateResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req model.CannedResponseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := h.service.UpdateResponse(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "update response")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteResponse handles DELETE /api/v1/responses/:id
func (h *KnowledgeHandler) DeleteResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteResponse(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "delete response")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
