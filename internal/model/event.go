package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeMessage   EventType = "message"
	EventTypeClosed    EventType = "closed"
	EventTypeEscalated EventType = "escalated"
	EventTypeRelayFail EventType = "relay_failed"
)

// ConversationEvent is published to the event log for downstream consumers.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID uint           `json:"conversation_id"`
	ChatID         string         `json:"chat_id"`
	Type           EventType      `json:"type"`
	Message        *Message       `json:"message,omitempty"`
	Source         string         `json:"source,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
