// Package conversation defines the message store the workflow reads
// transcripts from, with in-memory and JSON file implementations.
package conversation

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a message does not exist.
var ErrNotFound = errors.New("message not found")

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ProcessingStatus tracks upload and transcription of a message.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusComplete   ProcessingStatus = "complete"
	StatusFailed     ProcessingStatus = "failed"
)

// Terminal reports whether no further processing will happen.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Message is a single conversation turn.
type Message struct {
	ID               string           `json:"id"`
	ConversationID   string           `json:"conversationId"`
	Role             Role             `json:"role"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	Content          *string          `json:"content,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Text returns the message content or the empty string.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// ListOptions selects messages for one conversation.
type ListOptions struct {
	ConversationID string
	// Limit caps the number of messages returned; zero means no limit.
	Limit int
}

// Repository is the read side of the message store.
// ListMessages returns messages newest first.
type Repository interface {
	ListMessages(ctx context.Context, opts ListOptions) ([]Message, error)
	FindByID(ctx context.Context, id string) (*Message, error)
}
