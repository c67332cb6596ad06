package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/capitalize-ai/artifact-chat/internal/model"
)

// TitleInstruction is the fixed system prompt used for titling.
const TitleInstruction = "Generate a short, concise title (max 6 words) for this conversation based on the user's message."

// ErrEmptyTitle is returned when the provider answers with a blank title.
var ErrEmptyTitle = errors.New("provider returned an empty title")

// SummarizeTitle asks client for a short title describing seed.
func SummarizeTitle(ctx context.Context, client Client, seed string) (string, error) {
	resp, err := client.Complete(ctx, &CompletionRequest{
		Messages: []ChatMessage{
			{Role: string(model.RoleSystem), Content: TitleInstruction},
			{Role: string(model.RoleUser), Content: seed},
		},
		MaxTokens:   20,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	title := CleanTitle(resp.Content)
	if title == "" {
		return "", ErrEmptyTitle
	}
	return title, nil
}

// CleanTitle strips surrounding whitespace and quotes.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	return strings.TrimSpace(title)
}
