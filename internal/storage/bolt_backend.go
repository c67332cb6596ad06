package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/capitalize-ai/artifact-chat/internal/model"
)

var conversationsBucket = []byte("conversations")

// BoltBackend stores one key per conversation in a bbolt file. Each save is
// a single transaction that only rewrites the changed conversation.
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend opens (or creates) the bbolt file at path.
func NewBoltBackend(path string) (*BoltBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: conversation store path is required", model.ErrConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(conversationsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltBackend{db: db}, nil
}

// Load reads every stored conversation.
func (b *BoltBackend) Load(ctx context.Context) ([]*model.Conversation, error) {
	var out []*model.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(conversationsBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var conv model.Conversation
			if err := json.Unmarshal(v, &conv); err != nil {
				return fmt.Errorf("decode conversation %s: %w", k, err)
			}
			out = append(out, &conv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes changed in one transaction. With no changed conversation the
// whole table is rewritten.
func (b *BoltBackend) Save(ctx context.Context, all map[string]*model.Conversation, changed *model.Conversation) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(conversationsBucket)
		if err != nil {
			return err
		}
		if changed != nil {
			return putConversation(bucket, changed)
		}
		for _, conv := range all {
			if err := putConversation(bucket, conv); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the file lock.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

func putConversation(bucket *bolt.Bucket, conv *model.Conversation) error {
	enc, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(conv.ID), enc)
}
