package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hrdesk/hr-assistant/internal/model"
)

// MessageStore persists the append-only message log.
type MessageStore struct {
	db *gorm.DB
}

// NewMessageStore creates a message store.
func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Append inserts a message. Timestamp defaults to now.
func (s *MessageStore) Append(ctx context.Context, msg *model.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent messages of a conversation, newest first.
func (s *MessageStore) Recent(ctx context.Context, conversationID uint, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp DESC").Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	return msgs, nil
}

// List returns a page of a conversation's messages in chronological order.
func (s *MessageStore) List(ctx context.Context, conversationID uint, limit, offset int) ([]model.Message, bool, error) {
	var msgs []model.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").Order("id ASC").
		Limit(limit + 1).Offset(offset).
		Find(&msgs).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to list messages: %w", err)
	}
	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}
	return msgs, hasMore, nil
}

// Since returns all messages at or after t, oldest first.
func (s *MessageStore) Since(ctx context.Context, t time.Time) ([]model.Message, error) {
	var msgs []model.Message
	err := s.db.WithContext(ctx).
		Where("timestamp >= ?", t.UTC()).
		Order("timestamp ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return msgs, nil
}

// CountByConversation returns message counts keyed by conversation id.
func (s *MessageStore) CountByConversation(ctx context.Context, ids []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	var rows []struct {
		ConversationID uint
		N              int64
	}
	err := s.db.WithContext(ctx).Model(&model.Message{}).
		Select("conversation_id, COUNT(*) AS n").
		Where("conversation_id IN ?", ids).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	for _, r := range rows {
		counts[r.ConversationID] = r.N
	}
	return counts, nil
}
