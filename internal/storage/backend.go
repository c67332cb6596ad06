package storage

import (
	"context"

	"github.com/capitalize-ai/artifact-chat/internal/model"
)

// Backend persists the conversation table. Load is called once at startup;
// Save is called after every mutation with the full table and the
// conversation that changed.
type Backend interface {
	Load(ctx context.Context) ([]*model.Conversation, error)
	Save(ctx context.Context, all map[string]*model.Conversation, changed *model.Conversation) error
	Close() error
}
