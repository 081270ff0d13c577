package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/hrdesk/hr-assistant/internal/model"
)

// ResponseStore persists canned responses.
type ResponseStore struct {
	db *gorm.DB
}

// NewResponseStore creates a canned response store.
func NewResponseStore(db *gorm.DB) *ResponseStore {
	return &ResponseStore{db: db}
}

// ListActive returns active responses by priority, highest first, then by id.
func (s *ResponseStore) ListActive(ctx context.Context) ([]model.CannedResponse, error) {
	var rs []model.CannedResponse
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority DESC").Order("id ASC").
		Find(&rs).Error; err != nil {
		return nil, fmt.Errorf("failed to load canned responses: %w", err)
	}
	return rs, nil
}

// Get returns a canned response by id.
func (s *ResponseStore) Get(ctx context.Context, id uint) (*model.CannedResponse, error) {
	var r model.CannedResponse
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// Create inserts a new active canned response.
func (s *ResponseStore) Create(ctx context.Context, r *model.CannedResponse) error {
	r.IsActive = true
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create canned response: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of a canned response.
func (s *ResponseStore) Update(ctx context.Context, r *model.CannedResponse) error {
	res := s.db.WithContext(ctx).Model(&model.CannedResponse{}).
		Where("id = ?", r.ID).
		Updates(map[string]any{
			"trigger_keywords": r.TriggerKeywords,
			"response_text":    r.ResponseText,
			"category":         r.Category,
			"priority":         r.Priority,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update canned response: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes a canned response.
func (s *ResponseStore) Deactivate(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&model.CannedResponse{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate canned response: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementUsage adds one to the usage counter in a single UPDATE.
func (s *ResponseStore) IncrementUsage(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&model.CannedResponse{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("failed to increment response usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActive returns the number of active canned responses.
func (s *ResponseStore) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.CannedResponse{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}
