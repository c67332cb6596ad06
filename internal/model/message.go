package model

import (
	"path/filepath"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ArtifactTypeCode tags artifacts extracted from fenced code blocks.
const ArtifactTypeCode = "application/vnd.ant.code"

// Message represents a conversation message. Committed messages are never
// edited.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Files is only set on user messages.
	Files []Attachment `json:"files,omitempty"`
	// Artifacts is only set on assistant messages.
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Clone returns a copy with its own attachment and artifact slices.
func (m Message) Clone() Message {
	if m.Files != nil {
		m.Files = append([]Attachment(nil), m.Files...)
	}
	if m.Artifacts != nil {
		m.Artifacts = append([]Artifact(nil), m.Artifacts...)
	}
	return m
}

// Attachment describes an uploaded file.
type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
}

// StoredName is the key the attachment is retrievable under.
func (a Attachment) StoredName() string {
	return filepath.Base(a.Path)
}

// Artifact is a code snippet extracted from an assistant response.
type Artifact struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// FileUpload is a raw file payload received with a message.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SendMessageRequest is the input of a conversation turn.
type SendMessageRequest struct {
	ConversationID string
	Content        string
	Files          []FileUpload
}

// SendMessageResponse is the response after a successful turn.
type SendMessageResponse struct {
	Conversation *Conversation `json:"conversation"`
}

// UploadResponse describes a standalone upload.
type UploadResponse struct {
	Attachment
	URL string `json:"url"`
}
