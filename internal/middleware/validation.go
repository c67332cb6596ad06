package middleware

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/capitalize-ai/artifact-chat/internal/model"
)

const (
	maxMessageLength = 100000
	maxTitleLength   = 256
	maxIDLength      = 64
)

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &model.ValidationError{Field: "message", Reason: "cannot be empty"}
	}
	if len(content) > maxMessageLength {
		return &model.ValidationError{Field: "message", Reason: "exceeds maximum length"}
	}
	if !utf8.ValidString(content) {
		return &model.ValidationError{Field: "message", Reason: "must be valid UTF-8"}
	}
	return nil
}

// ValidateConversationID rejects ids that cannot name a stored conversation.
// Well-formed but unknown ids are left to the repository.
func ValidateConversationID(id string) error {
	if id == "" {
		return &model.ValidationError{Field: "conversation_id", Reason: "is required"}
	}
	if len(id) > maxIDLength {
		return &model.ValidationError{Field: "conversation_id", Reason: "exceeds maximum length"}
	}
	if strings.IndexFunc(id, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return &model.ValidationError{Field: "conversation_id", Reason: "contains invalid characters"}
	}
	return nil
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return &model.ValidationError{Field: "title", Reason: "cannot be empty"}
	}
	if len(title) > maxTitleLength {
		return &model.ValidationError{Field: "title", Reason: "exceeds maximum length"}
	}
	if !utf8.ValidString(title) {
		return &model.ValidationError{Field: "title", Reason: "must be valid UTF-8"}
	}
	return nil
}
