// Package model defines data structures for the chat backend.
package model

import (
	"time"
)

// DefaultTitle is the placeholder title of a conversation that has not
// completed its first exchange.
const DefaultTitle = "New conversation"

// Conversation represents a conversation thread.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary returns the lightweight projection used for listings.
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
	}
}

// Clone returns a deep copy so callers can never mutate stored state.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i := range c.Messages {
		out.Messages[i] = c.Messages[i].Clone()
	}
	return &out
}

// Touch advances UpdatedAt to now, never moving it backwards.
func (c *Conversation) Touch(now time.Time) {
	if now.Before(c.UpdatedAt) {
		return
	}
	c.UpdatedAt = now
}

// ConversationSummary is a conversation without message bodies.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// UpdateConversationRequest is the request to rename a conversation.
type UpdateConversationRequest struct {
	Title string `json:"title"`
}
