// Package model defines data structures for the HR bot.
package model

import (
	"time"
)

// User is an employee known from the chat platform.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BitrixUserID string    `gorm:"size:50;uniqueIndex;not null" json:"bitrix_user_id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255" json:"email,omitempty"`
	Department   string    `gorm:"size:255" json:"department,omitempty"`
	Position     string    `gorm:"size:255" json:"position,omitempty"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationClosed    ConversationStatus = "closed"
	ConversationEscalated ConversationStatus = "escalated"
)

// Conversation is a dialogue between one user and the bot in one chat.
// At most one conversation per (user, chat) is active at a time.
type Conversation struct {
	ID               uint               `gorm:"primaryKey" json:"id"`
	UserID           uint               `gorm:"index:idx_conv_user_chat_status;not null" json:"user_id"`
	ChatID           string             `gorm:"size:100;index:idx_conv_user_chat_status;not null" json:"chat_id"`
	Status           ConversationStatus `gorm:"size:20;index:idx_conv_user_chat_status;default:active" json:"status"`
	StartedAt        time.Time          `json:"started_at"`
	EndedAt          *time.Time         `json:"ended_at,omitempty"`
	EscalatedToHuman bool               `gorm:"default:false" json:"escalated_to_human"`
	User             *User              `gorm:"foreignKey:UserID" json:"user,omitempty"`
	MessageCount     int64              `gorm:"-" json:"message_count,omitempty"`
}

// EscalateConversationRequest is the request to hand a conversation to a human.
type EscalateConversationRequest struct {
	Reason string `json:"reason"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int64          `json:"total"`
	HasMore       bool           `json:"has_more"`
}
