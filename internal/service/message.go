// Package service implements answer resolution and conversation handling for
// the HR assistant.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hrdesk/hr-assistant/internal/model"
	"github.com/hrdesk/hr-assistant/pkg/logger"
	"github.com/hrdesk/hr-assistant/pkg/metrics"
)

// ErrInvalidMessage is returned for inbound messages missing text, sender or chat.
var ErrInvalidMessage = errors.New("message text, user id and chat id are required")

const unknownUserName = "Неизвестный пользователь"

// UserRepository finds or creates chat users.
type UserRepository interface {
	FindOrCreate(ctx context.Context, profile *model.User) (*model.User, error)
}

// ConversationRepository persists conversations.
type ConversationRepository interface {
	FindOrCreateActive(ctx context.Context, userID uint, chatID string) (*model.Conversation, bool, error)
	Get(ctx context.Context, id uint) (*model.Conversation, error)
	List(ctx context.Context, status model.ConversationStatus, limit, offset int) ([]model.Conversation, int64, error)
	Transition(ctx context.Context, id uint, status model.ConversationStatus) (*model.Conversation, error)
}

// MessageLog appends and reads conversation messages.
type MessageLog interface {
	Append(ctx context.Context, msg *model.Message) error
	List(ctx context.Context, conversationID uint, limit, offset int) ([]model.Message, bool, error)
	CountByConversation(ctx context.Context, ids []uint) (map[uint]int64, error)
}

// ChatPlatform delivers answers to the chat the question came from.
type ChatPlatform interface {
	SendMessage(ctx context.Context, dialogID, text string) error
	SetTyping(ctx context.Context, dialogID string) error
	CreateTask(ctx context.Context, title, description, responsibleID string) (string, error)
}

// EventPublisher records conversation activity in the event log.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.ConversationEvent) error
}

// AnswerResolver produces the bot answer for a message.
type AnswerResolver interface {
	Resolve(ctx context.Context, text string, conversationID uint) Resolution
}

// InboundResult describes what happened to an inbound message.
type InboundResult struct {
	ConversationID uint    `json:"conversation_id"`
	Answer         string  `json:"answer"`
	Source         Source  `json:"source"`
	ResponseTime   float64 `json:"response_time"`
	Relayed        bool    `json:"relayed"`
}

// MessageService runs the inbound message pipeline.
type MessageService struct {
	users         UserRepository
	conversations ConversationRepository
	messages      MessageLog
	resolver      AnswerResolver
	platform      ChatPlatform
	events        EventPublisher
	logger        *logger.Logger
}

// NewMessageService creates a new message service. platform may be nil when
// the chat platform is not configured; answers are then stored but not relayed.
func NewMessageService(
	users UserRepository,
	conversations ConversationRepository,
	messages MessageLog,
	resolver AnswerResolver,
	platform ChatPlatform,
	events EventPublisher,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		users:         users,
		conversations: conversations,
		messages:      messages,
		resolver:      resolver,
		platform:      platform,
		events:        events,
		logger:        log.Named("messages"),
	}
}

// HandleInbound records an inbound message, resolves the answer, records it
// and relays it to the chat. Relay failures are logged, never returned.
func (s *MessageService) HandleInbound(ctx context.Context, in *model.InboundMessage) (*InboundResult, error) {
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" || in.UserID == "" || in.ChatID == "" {
		return nil, ErrInvalidMessage
	}
	log := s.logger.WithChat(in.MessageID, in.ChatID, in.UserID)

	name := strings.TrimSpace(in.UserName)
	if name == "" {
		name = unknownUserName
	}
	user, err := s.users.FindOrCreate(ctx, &model.User{
		BitrixUserID: in.UserID,
		Name:         name,
		Email:        in.Email,
		Department:   in.Department,
		Position:     in.Position,
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}

	conv, created, err := s.conversations.FindOrCreateActive(ctx, user.ID, in.ChatID)
	if err != nil {
		return nil, err
	}
	if created {
		metrics.ConversationsTotal.WithLabelValues(string(model.ConversationActive)).Inc()
		log.Info("conversation started", zap.Uint("conversation_id", conv.ID))
	}

	userMsg := &model.Message{
		ConversationID: conv.ID,
		MessageType:    model.MessageTypeUser,
		Content:        in.Text,
	}
	if err := s.messages.Append(ctx, userMsg); err != nil {
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues(string(model.MessageTypeUser)).Inc()
	s.publish(ctx, log, &model.ConversationEvent{
		ConversationID: conv.ID,
		ChatID:         in.ChatID,
		Type:           model.EventTypeMessage,
		Message:        userMsg,
		Metadata:       map[string]any{"sentiment": AnalyzeSentiment(in.Text)},
	})

	if s.platform != nil {
		if err := s.platform.SetTyping(ctx, in.ChatID); err != nil {
			log.Debug("failed to set typing indicator", zap.Error(err))
		}
	}

	start := time.Now()
	res := s.resolver.Resolve(ctx, in.Text, conv.ID)
	elapsed := time.Since(start).Seconds()

	botMsg := &model.Message{
		ConversationID:    conv.ID,
		MessageType:       model.MessageTypeBot,
		Content:           res.Text,
		ResponseTime:      &elapsed,
		KnowledgeBaseUsed: res.Source == SourceKnowledgeBase,
		ProcessedByLLM:    res.Source == SourceGenerative,
	}
	var storeErr error
	if err := s.messages.Append(ctx, botMsg); err != nil {
		storeErr = fmt.Errorf("failed to record answer: %w", err)
		log.Error("failed to record answer", zap.Uint("conversation_id", conv.ID), zap.Error(err))
	} else {
		metrics.MessagesTotal.WithLabelValues(string(model.MessageTypeBot)).Inc()
		s.publish(ctx, log, &model.ConversationEvent{
			ConversationID: conv.ID,
			ChatID:         in.ChatID,
			Type:           model.EventTypeMessage,
			Message:        botMsg,
			Source:         string(res.Source),
		})
	}

	result := &InboundResult{
		ConversationID: conv.ID,
		Answer:         res.Text,
		Source:         res.Source,
		ResponseTime:   elapsed,
	}
	result.Relayed = s.relay(ctx, log, conv.ID, in.ChatID, res.Text)

	log.Info("message answered",
		zap.Uint("conversation_id", conv.ID),
		zap.String("source", string(res.Source)),
		zap.Float64("response_time", elapsed),
		zap.Bool("relayed", result.Relayed),
	)
	return result, storeErr
}

func (s *MessageService) relay(ctx context.Context, log *logger.Logger, conversationID uint, chatID, text string) bool {
	if s.platform == nil {
		return false
	}
	err := s.platform.SendMessage(ctx, chatID, text)
	if err == nil {
		return true
	}

	metrics.RelayFailuresTotal.Inc()
	log.Error("failed to relay answer", zap.Uint("conversation_id", conversationID), zap.Error(err))
	s.publish(ctx, log, &model.ConversationEvent{
		ConversationID: conversationID,
		ChatID:         chatID,
		Type:           model.EventTypeRelayFail,
		Reason:         err.Error(),
	})
	return false
}

func (s *MessageService) publish(ctx context.Context, log *logger.Logger, event *model.ConversationEvent) {
	if s.events == nil {
		return
	}
	event.ID = uuid.Must(uuid.NewV7()).String()
	event.CreatedAt = time.Now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		log.Warn("failed to publish event",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}
