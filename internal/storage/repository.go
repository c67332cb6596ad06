package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/artifact-chat/internal/model"
)

// NewBackend builds the backend named by kind ("json" or "bolt").
func NewBackend(kind, path string) (Backend, error) {
	switch kind {
	case "", "json":
		return NewJSONFileBackend(path)
	case "bolt":
		return NewBoltBackend(path)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", model.ErrConfiguration, kind)
	}
}

// Repository owns all conversations. The table is loaded once and every
// mutation is persisted through the backend while holding the write lock,
// so there is a single writer across all conversations. A mutation whose
// save fails is reverted in memory.
type Repository struct {
	mu            sync.RWMutex
	backend       Backend
	conversations map[string]*model.Conversation

	now   func() time.Time
	newID func() string
}

// NewRepository loads the table from backend.
func NewRepository(ctx context.Context, backend Backend) (*Repository, error) {
	loaded, err := backend.Load(ctx)
	if err != nil {
		return nil, &model.StorageError{Op: "load conversations", Err: err}
	}

	r := &Repository{
		backend:       backend,
		conversations: make(map[string]*model.Conversation, len(loaded)),
		now:           func() time.Time { return time.Now().UTC() },
		newID:         func() string { return uuid.NewString() },
	}
	for _, conv := range loaded {
		if conv.Messages == nil {
			conv.Messages = []model.Message{}
		}
		r.conversations[conv.ID] = conv
	}
	return r, nil
}

// Close closes the backend.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.Close()
}

// Create allocates and persists an empty conversation.
func (r *Repository) Create(ctx context.Context) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	conv := &model.Conversation{
		ID:        r.newID(),
		Title:     model.DefaultTitle,
		Messages:  []model.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.conversations[conv.ID] = conv
	if err := r.backend.Save(ctx, r.conversations, conv); err != nil {
		delete(r.conversations, conv.ID)
		return nil, &model.StorageError{Op: "create conversation", Err: err}
	}
	return conv.Clone(), nil
}

// Get returns a copy of the conversation.
func (r *Repository) Get(ctx context.Context, id string) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id]
	if !ok {
		return nil, &model.NotFoundError{Resource: "conversation", ID: id}
	}
	return conv.Clone(), nil
}

// List returns summaries ordered by most recently updated.
func (r *Repository) List(ctx context.Context) ([]model.ConversationSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]model.ConversationSummary, 0, len(r.conversations))
	for _, conv := range r.conversations {
		items = append(items, conv.Summary())
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items, nil
}

// AppendMessage adds msg to the end of the conversation.
func (r *Repository) AppendMessage(ctx context.Context, id string, msg model.Message) (*model.Conversation, error) {
	return r.mutate(ctx, id, "append message", func(conv *model.Conversation) bool {
		conv.Messages = append(conv.Messages, msg.Clone())
		conv.Touch(r.now())
		return true
	})
}

// RemoveLastMessage pops the most recent message. It is a no-op on an empty
// conversation.
func (r *Repository) RemoveLastMessage(ctx context.Context, id string) (*model.Conversation, error) {
	return r.mutate(ctx, id, "remove last message", func(conv *model.Conversation) bool {
		if len(conv.Messages) == 0 {
			return false
		}
		conv.Messages = conv.Messages[:len(conv.Messages)-1]
		conv.Touch(r.now())
		return true
	})
}

// SetTitle overwrites the conversation title.
func (r *Repository) SetTitle(ctx context.Context, id, title string) (*model.Conversation, error) {
	return r.mutate(ctx, id, "set title", func(conv *model.Conversation) bool {
		conv.Title = title
		conv.Touch(r.now())
		return true
	})
}

// SetTitleIfDefault sets title only while the conversation still carries
// the placeholder title. It reports whether the title was changed.
func (r *Repository) SetTitleIfDefault(ctx context.Context, id, title string) (*model.Conversation, bool, error) {
	applied := false
	conv, err := r.mutate(ctx, id, "set title", func(conv *model.Conversation) bool {
		if conv.Title != model.DefaultTitle {
			return false
		}
		conv.Title = title
		conv.Touch(r.now())
		applied = true
		return true
	})
	if err != nil {
		return nil, false, err
	}
	return conv, applied, nil
}

// mutate applies fn to a copy of the conversation and swaps it in only
// after the backend accepted the new table.
func (r *Repository) mutate(ctx context.Context, id, op string, fn func(*model.Conversation) bool) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conversations[id]
	if !ok {
		return nil, &model.NotFoundError{Resource: "conversation", ID: id}
	}

	next := current.Clone()
	if !fn(next) {
		return next, nil
	}

	r.conversations[id] = next
	if err := r.backend.Save(ctx, r.conversations, next); err != nil {
		r.conversations[id] = current
		return nil, &model.StorageError{Op: op, Err: err}
	}
	return next.Clone(), nil
}
