package handler

import (
	"context"
	"net/http"

	"github.com/hrdesk/hr-assistant/internal/middleware"
	"github.com/hrdesk/hr-assistant/internal/model"
	"github.com/hrdesk/hr-assistant/internal/service"
	"github.com/hrdesk/hr-assistant/pkg/logger"
)

// EventReplayer reads stored conversation events from the event log.
type EventReplayer interface {
	Replay(ctx context.Context, conversationID uint, limit int) ([]model.ConversationEvent, error)
}

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	events  EventReplayer
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler. events may be
// nil when the event log is not configured.
func NewConversationHandler(svc *service.ConversationService, events EventReplayer, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		events:  events,
		logger:  log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r, 20, 100)

	status := model.ConversationStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.ConversationActive, model.ConversationClosed, model.ConversationEscalated:
	default:
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	resp, err := h.service.List(r.Context(), status, limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err, "list conversations")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/conversations/:id
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	conv, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Close handles POST /api/v1/conversations/:id/close
func (h *ConversationHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	conv, err := h.service.Close(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "close conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Escalate handles POST /api/v1/conversations/:id/escalate
func (h *ConversationHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req model.EscalateConversationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if err := middleware.ValidateReason(req.Reason); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, taskID, err := h.service.Escalate(r.Context(), id, req.Reason)
	if err != nil {
		writeServiceError(w, h.logger, err, "escalate conversation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"task_id":      taskID,
	})
}

// Events handles GET /api/v1/conversations/:id/events
func (h *ConversationHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if h.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event log not configured")
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "get conversation")
		return
	}

	limit, _ := paging(r, 100, 1000)
	events, err := h.events.Replay(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "replay events")
		return
	}
	if events == nil {
		events = []model.ConversationEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
