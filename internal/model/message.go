package model

import (
	"time"
)

// MessageType represents who produced a message.
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeBot    MessageType = "bot"
	MessageTypeSystem MessageType = "system"
)

// Message is one append-only entry of a conversation.
type Message struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	ConversationID    uint        `gorm:"index;not null" json:"conversation_id"`
	MessageType       MessageType `gorm:"size:20;not null" json:"message_type"`
	Content           string      `gorm:"type:text;not null" json:"content"`
	Timestamp         time.Time   `gorm:"index" json:"timestamp"`
	ProcessedByLLM    bool        `gorm:"column:processed_by_llm;default:false" json:"processed_by_llm"`
	ResponseTime      *float64    `json:"response_time,omitempty"`
	KnowledgeBaseUsed bool        `gorm:"default:false" json:"knowledge_base_used"`
}

// InboundMessage is a normalized chat message received from the webhook.
type InboundMessage struct {
	MessageID  string `json:"message_id,omitempty"`
	Text       string `json:"text"`
	ChatID     string `json:"chat_id"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}
