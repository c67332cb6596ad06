package model

import (
	"time"
)

// EventType represents the type of turn lifecycle event.
type EventType string

const (
	EventTypeTurnCompleted  EventType = "turn_completed"
	EventTypeTurnRolledBack EventType = "turn_rolled_back"
	EventTypeTitleSet       EventType = "title_set"
)

// TurnEvent is published when a turn reaches a terminal state or the
// conversation title changes.
type TurnEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Type           EventType      `json:"type"`
	MessageID      string         `json:"message_id,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
