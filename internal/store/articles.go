package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/hrdesk/hr-assistant/internal/model"
)

// ArticleStore persists knowledge base articles.
type ArticleStore struct {
	db *gorm.DB
}

// NewArticleStore creates an article store.
func NewArticleStore(db *gorm.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// ArticleFilter narrows article listings.
type ArticleFilter struct {
	Category        string
	Search          string
	IncludeInactive bool
	Limit           int
	Offset          int
}

// ListActive returns all active articles ordered by id.
func (s *ArticleStore) ListActive(ctx context.Context) ([]model.KnowledgeArticle, error) {
	var articles []model.KnowledgeArticle
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}
	return articles, nil
}

// List returns articles matching the filter, newest first.
func (s *ArticleStore) List(ctx context.Context, f ArticleFilter) ([]model.KnowledgeArticle, error) {
	query := s.db.WithContext(ctx).Model(&model.KnowledgeArticle{})
	if !f.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", pattern, pattern)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit).Offset(f.Offset)
	}

	var articles []model.KnowledgeArticle
	if err := query.Order("created_at DESC").Order("id DESC").Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, nil
}

// Popular returns the most used active articles.
func (s *ArticleStore) Popular(ctx context.Context, limit int) ([]model.KnowledgeArticle, error) {
	var articles []model.KnowledgeArticle
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("usage_count DESC").Order("id ASC").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("failed to load popular articles: %w", err)
	}
	return articles, nil
}

// Get returns an article by id regardless of its active flag.
func (s *ArticleStore) Get(ctx context.Context, id uint) (*model.KnowledgeArticle, error) {
	var a model.KnowledgeArticle
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// Create inserts a new active article.
func (s *ArticleStore) Create(ctx context.Context, a *model.KnowledgeArticle) error {
	a.IsActive = true
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to create article: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of an article.
func (s *ArticleStore) Update(ctx context.Context, a *model.KnowledgeArticle) error {
	res := s.db.WithContext(ctx).Model(&model.KnowledgeArticle{}).
		Where("id = ?", a.ID).
		Updates(map[string]any{
			"title":    a.Title,
			"content":  a.Content,
			"category": a.Category,
			"tags":     a.Tags,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update article: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes an article.
func (s *ArticleStore) Deactivate(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&model.KnowledgeArticle{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate article: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementUsage adds one to the usage counter in a single UPDATE.
func (s *ArticleStore) IncrementUsage(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&model.KnowledgeArticle{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("failed to increment article usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActive returns the number of active articles.
func (s *ArticleStore) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.KnowledgeArticle{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}

// CategoryUsage sums active article usage per category, most used first.
func (s *ArticleStore) CategoryUsage(ctx context.Context, limit int) ([]model.CategoryUsage, error) {
	var rows []model.CategoryUsage
	query := s.db.WithContext(ctx).Model(&model.KnowledgeArticle{}).
		Select("category, SUM(usage_count) AS usage").
		Where("is_active = ?", true).
		Group("category").
		Order("usage DESC").Order("category ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate category usage: %w", err)
	}
	return rows, nil
}

// EnsureByTitle inserts each article whose title is not stored yet and
// returns how many were created.
func (s *ArticleStore) EnsureByTitle(ctx context.Context, articles []model.KnowledgeArticle) (int, error) {
	created := 0
	for i := range articles {
		var n int64
		if err := s.db.WithContext(ctx).Model(&model.KnowledgeArticle{}).
			Where("title = ?", articles[i].Title).
			Count(&n).Error; err != nil {
			return created, fmt.Errorf("failed to check article %q: %w", articles[i].Title, err)
		}
		if n > 0 {
			continue
		}
		a := articles[i]
		if err := s.Create(ctx, &a); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
