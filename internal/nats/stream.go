package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/hrdesk/hr-assistant/internal/model"
)

const (
	// StreamName is the name of the conversation events stream.
	StreamName = "HRBOT"

	// SubjectPrefix is the prefix for all conversation subjects.
	SubjectPrefix = "hrbot"
)

// StreamManager publishes conversation activity to JetStream.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the events stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		Description: "HR assistant conversation messages and lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an event.
func EventSubject(event *model.ConversationEvent) string {
	if event.Type == model.EventTypeMessage && event.Message != nil {
		return fmt.Sprintf("%s.%d.msg.%s", SubjectPrefix, event.ConversationID, event.Message.MessageType)
	}
	return fmt.Sprintf("%s.%d.event.%s", SubjectPrefix, event.ConversationID, event.Type)
}

// ConversationFilter returns the filter subject for everything in a conversation.
func ConversationFilter(conversationID uint) string {
	return fmt.Sprintf("%s.%d.>", SubjectPrefix, conversationID)
}

// Publish publishes an event to JetStream.
func (m *StreamManager) Publish(ctx context.Context, event *model.ConversationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := m.client.JetStream().Publish(ctx, EventSubject(event), data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Replay returns up to limit stored events of a conversation, oldest first.
func (m *StreamManager) Replay(ctx context.Context, conversationID uint, limit int) ([]model.ConversationEvent, error) {
	consumer, err := m.client.JetStream().OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{ConversationFilter(conversationID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	var events []model.ConversationEvent
	for msg := range batch.Messages() {
		var event model.ConversationEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}
		events = append(events, event)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, fmt.Errorf("batch error: %w", err)
	}
	return events, nil
}

// Watch delivers every stored event of a conversation followed by new ones
// until ctx is done. The channel is never closed; receivers select on ctx.
func (m *StreamManager) Watch(ctx context.Context, conversationID uint) (<-chan model.ConversationEvent, error) {
	consumer, err := m.client.JetStream().OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{ConversationFilter(conversationID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	out := make(chan model.ConversationEvent, 64)
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var event model.ConversationEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			return
		}
		select {
		case out <- event:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume events: %w", err)
	}

	go func() {
		<-ctx.Done()
		cc.Stop()
	}()
	return out, nil
}

// NopPublisher drops events. It is used when NATS is not configured.
type NopPublisher struct{}

// Publish implements the publisher interface.
func (NopPublisher) Publish(context.Context, *model.ConversationEvent) error { return nil }
