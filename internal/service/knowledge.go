package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hrdesk/hr-assistant/internal/knowledge"
	"github.com/hrdesk/hr-assistant/internal/model"
	"github.com/hrdesk/hr-assistant/internal/store"
	"github.com/hrdesk/hr-assistant/pkg/logger"
)

// ErrInvalidInput marks management requests that fail validation.
var ErrInvalidInput = errors.New("invalid input")

// ArticleAdmin is the article persistence used by management operations.
type ArticleAdmin interface {
	List(ctx context.Context, f store.ArticleFilter) ([]model.KnowledgeArticle, error)
	Get(ctx context.Context, id uint) (*model.KnowledgeArticle, error)
	Create(ctx context.Context, a *model.KnowledgeArticle) error
	Update(ctx context.Context, a *model.KnowledgeArticle) error
	Deactivate(ctx context.Context, id uint) error
	EnsureByTitle(ctx context.Context, articles []model.KnowledgeArticle) (int, error)
}

// ResponseAdmin is the canned response persistence used by management operations.
type ResponseAdmin interface {
	ListActive(ctx context.Context) ([]model.CannedResponse, error)
	Get(ctx context.Context, id uint) (*model.CannedResponse, error)
	Create(ctx context.Context, r *model.CannedResponse) error
	Update(ctx context.Context, r *model.CannedResponse) error
	Deactivate(ctx context.Context, id uint) error
}

// KnowledgeService manages articles and canned responses.
type KnowledgeService struct {
	articles  ArticleAdmin
	responses ResponseAdmin
	matcher   *knowledge.Matcher
	logger    *logger.Logger
}

// NewKnowledgeService creates a knowledge management service.
func NewKnowledgeService(articles ArticleAdmin, responses ResponseAdmin, matcher *knowledge.Matcher, log *logger.Logger) *KnowledgeService {
	return &KnowledgeService{
		articles:  articles,
		responses: responses,
		matcher:   matcher,
		logger:    log.Named("knowledge_admin"),
	}
}

// Categories returns the configured category table.
func (s *KnowledgeService) Categories() []knowledge.Category {
	return s.matcher.Table().Categories()
}

// ListArticles lists articles.
func (s *KnowledgeService) ListArticles(ctx context.Context, f store.ArticleFilter) ([]model.ArticleView, error) {
	articles, err := s.articles.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return views(articles), nil
}

// PopularArticles lists the most used active articles.
func (s *KnowledgeService) PopularArticles(ctx context.Context, limit int) ([]model.ArticleView, error) {
	articles, err := s.matcher.Popular(ctx, limit)
	if err != nil {
		return nil, err
	}
	return views(articles), nil
}

// GetArticle returns one article.
func (s *KnowledgeService) GetArticle(ctx context.Context, id uint) (*model.ArticleView, error) {
	a, err := s.articles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := model.NewArticleView(*a)
	return &v, nil
}

// CreateArticle validates and stores a new article.
func (s *KnowledgeService) CreateArticle(ctx context.Context, req *model.ArticleRequest) (*model.ArticleView, error) {
	a, err := s.articleFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.articles.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("article created", zap.Uint("article_id", a.ID), zap.String("category", a.Category))
	v := model.NewArticleView(*a)
	return &v, nil
}

// UpdateArticle replaces the editable fields of an article.
func (s *KnowledgeService) UpdateArticle(ctx context.Context, id uint, req *model.ArticleRequest) (*model.ArticleView, error) {
	a, err := s.articleFromRequest(req)
	if err != nil {
		return nil, err
	}
	a.ID = id
	if err := s.articles.Update(ctx, a); err != nil {
		return nil, err
	}
	return s.GetArticle(ctx, id)
}

// DeleteArticle deactivates an article.
func (s *KnowledgeService) DeleteArticle(ctx context.Context, id uint) error {
	if err := s.articles.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("article deactivated", zap.Uint("article_id", id))
	return nil
}

// SeedDefaults inserts the starter articles that are missing.
func (s *KnowledgeService) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.articles.EnsureByTitle(ctx, knowledge.DefaultArticles())
	if err != nil {
		return n, fmt.Errorf("failed to seed default articles: %w", err)
	}
	return n, nil
}

// Preview reports what the knowledge base would answer without counting it.
func (s *KnowledgeService) Preview(ctx context.Context, query string) (*model.SearchPreview, error) {
	a, stage, err := s.matcher.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	preview := &model.SearchPreview{Suggestions: knowledge.SimilarQuestions(query, 3)}
	if a != nil {
		v := model.NewArticleView(*a)
		preview.Found = true
		preview.Stage = string(stage)
		preview.Article = &v
	}
	return preview, nil
}

func (s *KnowledgeService) articleFromRequest(req *model.ArticleRequest) (*model.KnowledgeArticle, error) {
	a := &model.KnowledgeArticle{
		Title:    strings.TrimSpace(req.Title),
		Content:  strings.TrimSpace(req.Content),
		Category: strings.TrimSpace(req.Category),
	}
	switch {
	case a.Title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	case a.Content == "":
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	case !s.matcher.Table().Has(a.Category):
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, a.Category)
	}
	a.SetTags(req.Tags)
	return a, nil
}

// ListResponses lists active canned responses in matching order.
func (s *KnowledgeService) ListResponses(ctx context.Context) ([]model.CannedResponse, error) {
	rs, err := s.responses.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		rs = []model.CannedResponse{}
	}
	return rs, nil
}

// CreateResponse validates and stores a canned response.
func (s *KnowledgeService) CreateResponse(ctx context.Context, req *model.CannedResponseRequest) (*model.CannedResponse, error) {
	r, err := responseFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.responses.Create(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("canned response created", zap.Uint("response_id", r.ID), zap.Int("priority", r.Priority))
	return r, nil
}

// UpdateResponse replaces the editable fields of a canned response.
func (s *KnowledgeService) UpdateResponse(ctx context.Context, id uint, req *model.CannedResponseRequest) (*model.CannedResponse, error) {
	r, err := responseFromRequest(req)
	if err != nil {
		return nil, err
	}
	r.ID = id
	if err := s.responses.Update(ctx, r); err != nil {
		return nil, err
	}
	return s.responses.Get(ctx, id)
}

// DeleteResponse deactivates a canned response.
func (s *KnowledgeService) DeleteResponse(ctx context.Context, id uint) error {
	return s.responses.Deactivate(ctx, id)
}

func responseFromRequest(req *model.CannedResponseRequest) (*model.CannedResponse, error) {
	r := &model.CannedResponse{
		TriggerKeywords: model.JoinList(model.SplitList(req.Keywords)),
		ResponseText:    strings.TrimSpace(req.Response),
		Category:        strings.TrimSpace(req.Category),
		Priority:        req.Priority,
	}
	switch {
	case r.TriggerKeywords == "":
		return nil, fmt.Errorf("%w: at least one keyword is required", ErrInvalidInput)
	case r.ResponseText == "":
		return nil, fmt.Errorf("%w: response is required", ErrInvalidInput)
	case r.Category == "":
		return nil, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	return r, nil
}

func views(articles []model.KnowledgeArticle) []model.ArticleView {
	out := make([]model.ArticleView, len(articles))
	for i := range articles {
		out[i] = model.NewArticleView(articles[i])
	}
	return out
}
