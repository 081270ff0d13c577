package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hrdesk/hr-assistant/internal/model"
)

// UserStore persists chat platform users.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a user store.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindOrCreate returns the user with the given Bitrix ID, creating it from
// the supplied profile when missing. Existing profiles are not overwritten.
func (s *UserStore) FindOrCreate(ctx context.Context, profile *model.User) (*model.User, error) {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "bitrix_user_id"}}, DoNothing: true}).
		Create(profile).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	var user model.User
	if err := s.db.WithContext(ctx).
		Where("bitrix_user_id = ?", profile.BitrixUserID).
		First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", notFound(err))
	}
	return &user, nil
}

// Count returns the number of active users.
func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.User{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}
