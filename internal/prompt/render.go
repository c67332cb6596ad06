// Package prompt renders stored conversations into provider input.
package prompt

import (
	"strings"

	"github.com/capitalize-ai/artifact-chat/internal/llm"
	"github.com/capitalize-ai/artifact-chat/internal/model"
)

// Options bounds the rendered history.
type Options struct {
	// MaxMessages keeps at most the most recent N turns, starting on a user
	// turn. Zero means unbounded.
	MaxMessages int
}

// Render returns the user and assistant turns of conv, oldest first. System
// messages are not replayed. User turns that carry attachments get a
// descriptor block listing the uploaded files.
func Render(conv *model.Conversation, opts Options) []llm.ChatMessage {
	history := make([]llm.ChatMessage, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		switch msg.Role {
		case model.RoleUser:
			history = append(history, llm.ChatMessage{
				Role:    string(model.RoleUser),
				Content: msg.Content + describeFiles(msg.Files),
			})
		case model.RoleAssistant:
			history = append(history, llm.ChatMessage{
				Role:    string(model.RoleAssistant),
				Content: msg.Content,
			})
		}
	}

	if opts.MaxMessages > 0 && len(history) > opts.MaxMessages {
		history = history[len(history)-opts.MaxMessages:]
		// Providers require the window to open on a user turn.
		for len(history) > 1 && history[0].Role != string(model.RoleUser) {
			history = history[1:]
		}
	}
	return history
}

func describeFiles(files []model.Attachment) string {
	if len(files) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nUploaded files:\n")
	for _, f := range files {
		b.WriteString("- ")
		b.WriteString(f.Name)
		b.WriteString(" (")
		b.WriteString(f.ContentType)
		b.WriteString(")\n")
	}
	return b.String()
}
