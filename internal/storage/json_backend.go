package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/capitalize-ai/artifact-chat/internal/model"
)

// JSONFileBackend rewrites the whole conversation table to a single JSON file
// on every save. Writes go to a temp file in the same directory which is
// synced and renamed over the target, so a crash never leaves a partial file.
type JSONFileBackend struct {
	path string
}

type snapshot struct {
	Conversations []*model.Conversation `json:"conversations"`
}

// NewJSONFileBackend creates the parent directory of path if needed.
func NewJSONFileBackend(path string) (*JSONFileBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: conversation store path is required", model.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &JSONFileBackend{path: path}, nil
}

// Load reads the snapshot. A missing file is an empty table.
func (b *JSONFileBackend) Load(ctx context.Context) ([]*model.Conversation, error) {
	file, err := os.Open(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var payload snapshot
	if err := json.NewDecoder(file).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.path, err)
	}
	return payload.Conversations, nil
}

// Save writes the full table; changed is ignored.
func (b *JSONFileBackend) Save(ctx context.Context, all map[string]*model.Conversation, _ *model.Conversation) error {
	payload := snapshot{
		Conversations: make([]*model.Conversation, 0, len(all)),
	}
	for _, conv := range all {
		payload.Conversations = append(payload.Conversations, conv)
	}
	sort.Slice(payload.Conversations, func(i, j int) bool {
		a, c := payload.Conversations[i], payload.Conversations[j]
		if a.CreatedAt.Equal(c.CreatedAt) {
			return a.ID < c.ID
		}
		return a.CreatedAt.Before(c.CreatedAt)
	})

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	syncDir(dir)
	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (b *JSONFileBackend) Close() error {
	return nil
}

// syncDir makes the rename durable where the platform supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
