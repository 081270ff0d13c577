package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hrdesk/hr-assistant/internal/model"
	"github.com/hrdesk/hr-assistant/pkg/logger"
	"github.com/hrdesk/hr-assistant/pkg/metrics"
)

const (
	summaryPrefix      = "Резюме разговора: "
	escalationNotice   = "Ваш вопрос передан HR-специалисту. С вами свяжутся в ближайшее время."
	transcriptMessages = 50
)

// Summarizer writes conversation summaries.
type Summarizer interface {
	Summarize(ctx context.Context, lines []string) (string, error)
}

// ConversationService handles conversation administration.
type ConversationService struct {
	conversations ConversationRepository
	messages      MessageLog
	summarizer    Summarizer
	platform      ChatPlatform
	events        EventPublisher
	responsibleID string
	logger        *logger.Logger
}

// NewConversationService creates a new conversation service. responsibleID
// is the Bitrix24 user that receives escalation tasks.
func NewConversationService(
	conversations ConversationRepository,
	messages MessageLog,
	summarizer Summarizer,
	platform ChatPlatform,
	events EventPublisher,
	responsibleID string,
	log *logger.Logger,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		summarizer:    summarizer,
		platform:      platform,
		events:        events,
		responsibleID: responsibleID,
		logger:        log.Named("conversations"),
	}
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, id uint) (*model.Conversation, error) {
	return s.conversations.Get(ctx, id)
}

// List retrieves conversations, newest first, with message counts.
func (s *ConversationService) List(ctx context.Context, status model.ConversationStatus, limit, offset int) (*model.ListConversationsResponse, error) {
	convs, total, err := s.conversations.List(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(convs))
	for i := range convs {
		ids[i] = convs[i].ID
	}
	counts, err := s.messages.CountByConversation(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		convs[i].MessageCount = counts[convs[i].ID]
	}
	if convs == nil {
		convs = []model.Conversation{}
	}

	return &model.ListConversationsResponse{
		Conversations: convs,
		Total:         total,
		HasMore:       int64(offset+len(convs)) < total,
	}, nil
}

// Messages returns a page of a conversation's messages in chronological order.
func (s *ConversationService) Messages(ctx context.Context, id uint, limit, offset int) (*model.ListMessagesResponse, error) {
	if _, err := s.conversations.Get(ctx, id); err != nil {
		return nil, err
	}
	msgs, hasMore, err := s.messages.List(ctx, id, limit, offset)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return &model.ListMessagesResponse{Messages: msgs, HasMore: hasMore}, nil
}

// Close ends an active conversation and stores a summary as a system message
// when the generator can produce one.
func (s *ConversationService) Close(ctx context.Context, id uint) (*model.Conversation, error) {
	conv, err := s.conversations.Transition(ctx, id, model.ConversationClosed)
	if err != nil {
		return nil, err
	}
	metrics.ConversationsTotal.WithLabelValues(string(model.ConversationClosed)).Inc()

	if s.summarizer != nil {
		lines, err := s.transcript(ctx, id)
		if err != nil {
			s.logger.Warn("failed to load transcript", zap.Uint("conversation_id", id), zap.Error(err))
		} else if summary, err := s.summarizer.Summarize(ctx, lines); err != nil {
			s.logger.Warn("failed to summarize conversation", zap.Uint("conversation_id", id), zap.Error(err))
		} else if summary != "" {
			s.appendSystem(ctx, id, summaryPrefix+summary)
		}
	}

	s.publish(ctx, &model.ConversationEvent{
		ConversationID: conv.ID,
		ChatID:         conv.ChatID,
		Type:           model.EventTypeClosed,
	})
	s.logger.Info("conversation closed", zap.Uint("conversation_id", id))
	return conv, nil
}

// Escalate hands an active conversation to a human HR specialist. It opens a
// Bitrix24 task when a responsible user is configured and returns its id.
func (s *ConversationService) Escalate(ctx context.Context, id uint, reason string) (*model.Conversation, string, error) {
	conv, err := s.conversations.Transition(ctx, id, model.ConversationEscalated)
	if err != nil {
		return nil, "", err
	}
	metrics.ConversationsTotal.WithLabelValues(string(model.ConversationEscalated)).Inc()

	var taskID string
	if s.platform != nil && s.responsibleID != "" {
		lines, err := s.transcript(ctx, id)
		if err != nil {
			s.logger.Warn("failed to load transcript", zap.Uint("conversation_id", id), zap.Error(err))
		}
		taskID, err = s.platform.CreateTask(ctx, escalationTitle(conv), escalationDescription(conv, reason, lines), s.responsibleID)
		if err != nil {
			s.logger.Error("failed to create escalation task", zap.Uint("conversation_id", id), zap.Error(err))
		}
		if err := s.platform.SendMessage(ctx, conv.ChatID, escalationNotice); err != nil {
			metrics.RelayFailuresTotal.Inc()
			s.logger.Warn("failed to notify user about escalation", zap.Uint("conversation_id", id), zap.Error(err))
		}
	}

	note := "Разговор передан HR-специалисту."
	if reason != "" {
		note += " Причина: " + reason
	}
	s.appendSystem(ctx, id, note)

	s.publish(ctx, &model.ConversationEvent{
		ConversationID: conv.ID,
		ChatID:         conv.ChatID,
		Type:           model.EventTypeEscalated,
		Reason:         reason,
		Metadata:       map[string]any{"task_id": taskID},
	})
	s.logger.Info("conversation escalated",
		zap.Uint("conversation_id", id),
		zap.String("task_id", taskID),
	)
	return conv, taskID, nil
}

func (s *ConversationService) transcript(ctx context.Context, id uint) ([]string, error) {
	msgs, _, err := s.messages.List(ctx, id, transcriptMessages, 0)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		switch m.MessageType {
		case model.MessageTypeUser:
			lines = append(lines, "Сотрудник: "+m.Content)
		case model.MessageTypeBot:
			lines = append(lines, "Бот: "+m.Content)
		}
	}
	return lines, nil
}

func (s *ConversationService) appendSystem(ctx context.Context, id uint, text string) {
	msg := &model.Message{ConversationID: id, MessageType: model.MessageTypeSystem, Content: text}
	if err := s.messages.Append(ctx, msg); err != nil {
		s.logger.Error("failed to record system message", zap.Uint("conversation_id", id), zap.Error(err))
		return
	}
	metrics.MessagesTotal.WithLabelValues(string(model.MessageTypeSystem)).Inc()
}

func (s *ConversationService) publish(ctx context.Context, event *model.ConversationEvent) {
	if s.events == nil {
		return
	}
	event.ID = uuid.Must(uuid.NewV7()).String()
	event.CreatedAt = time.Now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func escalationTitle(conv *model.Conversation) string {
	name := "сотрудника"
	if conv.User != nil && conv.User.Name != "" {
		name = conv.User.Name
	}
	return fmt.Sprintf("HR-обращение #%d от %s", conv.ID, name)
}

func escalationDescription(conv *model.Conversation, reason string, lines []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Чат: %s\n", conv.ChatID)
	if conv.User != nil {
		fmt.Fprintf(&b, "Сотрудник: %s (ID %s)\n", conv.User.Name, conv.User.BitrixUserID)
		if conv.User.Department != "" {
			fmt.Fprintf(&b, "Подразделение: %s\n", conv.User.Department)
		}
	}
	if reason != "" {
		fmt.Fprintf(&b, "Причина: %s\n", reason)
	}
	if len(lines) > 0 {
		if len(lines) > 10 {
			lines = lines[len(lines)-10:]
		}
		b.WriteString("\nПоследние сообщения:\n")
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String()
}
