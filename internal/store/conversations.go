package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hrdesk/hr-assistant/internal/model"
)

// ConversationStore persists conversations.
type ConversationStore struct {
	db *gorm.DB
}

// NewConversationStore creates a conversation store.
func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// FindOrCreateActive returns the active conversation of a user in a chat,
// starting a new one when none exists. The user row is locked for the
// duration of the transaction so concurrent first messages do not open two
// active conversations.
func (s *ConversationStore) FindOrCreateActive(ctx context.Context, userID uint, chatID string) (*model.Conversation, bool, error) {
	var conv model.Conversation
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return fmt.Errorf("failed to lock user: %w", notFound(err))
		}

		err := tx.Where("user_id = ? AND chat_id = ? AND status = ?", userID, chatID, model.ConversationActive).
			Order("id ASC").
			First(&conv).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to find active conversation: %w", err)
		}

		conv = model.Conversation{
			UserID:    userID,
			ChatID:    chatID,
			Status:    model.ConversationActive,
			StartedAt: time.Now().UTC(),
		}
		if err := tx.Create(&conv).Error; err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &conv, created, nil
}

// Get returns a conversation with its user.
func (s *ConversationStore) Get(ctx context.Context, id uint) (*model.Conversation, error) {
	var conv model.Conversation
	if err := s.db.WithContext(ctx).Preload("User").First(&conv, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

// List returns conversations newest first, optionally filtered by status.
func (s *ConversationStore) List(ctx context.Context, status model.ConversationStatus, limit, offset int) ([]model.Conversation, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Conversation{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	var convs []model.Conversation
	if err := query.Preload("User").
		Order("started_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&convs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, total, nil
}

// CountByStatus counts conversations in a status; an empty status counts all.
func (s *ConversationStore) CountByStatus(ctx context.Context, status model.ConversationStatus) (int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Conversation{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var n int64
	err := query.Count(&n).Error
	return n, err
}

// Transition moves an active conversation to a terminal status. It returns
// ErrNotFound when the conversation does not exist and ErrNotActive when it
// was already closed or escalated.
func (s *ConversationStore) Transition(ctx context.Context, id uint, status model.ConversationStatus) (*model.Conversation, error) {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":   status,
		"ended_at": now,
	}
	if status == model.ConversationEscalated {
		updates["escalated_to_human"] = true
	}

	res := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND status = ?", id, model.ConversationActive).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotActive
	}
	return s.Get(ctx, id)
}

// ErrNotActive is returned when a transition targets a finished conversation.
var ErrNotActive = errors.New("conversation is not active")
