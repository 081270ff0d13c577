package service

import (
	"context"
	"fmt"

	"github.com/hrdesk/hr-assistant/internal/llm"
	"github.com/hrdesk/hr-assistant/internal/model"
)

// ContextSize is how many recent messages are handed to the generator.
const ContextSize = 10

// MessageRepository is the message log used by the context builder.
type MessageRepository interface {
	Recent(ctx context.Context, conversationID uint, limit int) ([]model.Message, error)
}

// ContextBuilder turns stored messages into generator history.
type ContextBuilder struct {
	messages MessageRepository
}

// NewContextBuilder creates a context builder.
func NewContextBuilder(messages MessageRepository) *ContextBuilder {
	return &ContextBuilder{messages: messages}
}

// Build returns the last ContextSize messages of a conversation in
// chronological order. User messages get the user role, everything else
// the assistant role.
func (b *ContextBuilder) Build(ctx context.Context, conversationID uint) ([]llm.ChatMessage, error) {
	recent, err := b.messages.Recent(ctx, conversationID, ContextSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build context: %w", err)
	}

	history := make([]llm.ChatMessage, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		role := llm.RoleAssistant
		if recent[i].MessageType == model.MessageTypeUser {
			role = llm.RoleUser
		}
		history = append(history, llm.ChatMessage{Role: role, Content: recent[i].Content})
	}
	return history, nil
}
