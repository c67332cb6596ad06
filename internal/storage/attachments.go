// Package storage persists conversations and uploaded attachments.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/capitalize-ai/artifact-chat/internal/model"
)

// AttachmentStore keeps uploaded files on local disk, one file per upload,
// named by a generated id plus the original extension.
type AttachmentStore struct {
	dir   string
	newID func() string
}

// NewAttachmentStore creates the upload directory if needed.
func NewAttachmentStore(dir string) (*AttachmentStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: upload directory is required", model.ErrConfiguration)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &model.StorageError{Op: "create upload dir", Err: err}
	}
	return &AttachmentStore{
		dir:   dir,
		newID: func() string { return uuid.NewString() },
	}, nil
}

// Dir returns the directory attachments are written to.
func (s *AttachmentStore) Dir() string {
	return s.dir
}

// Store writes data under a fresh id. Existing files are never overwritten.
func (s *AttachmentStore) Store(ctx context.Context, filename, contentType string, data []byte) (*model.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := s.newID()
	storedName := id + filepath.Ext(filepath.Base(filename))
	path := filepath.Join(s.dir, storedName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, &model.StorageError{Op: "create attachment", Err: err}
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, &model.StorageError{Op: "write attachment", Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, &model.StorageError{Op: "sync attachment", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, &model.StorageError{Op: "close attachment", Err: err}
	}

	return &model.Attachment{
		ID:          id,
		Name:        filename,
		Path:        path,
		ContentType: contentType,
	}, nil
}

// Retrieve returns the bytes stored under storedName (id plus extension).
func (s *AttachmentStore) Retrieve(ctx context.Context, storedName string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(storedName)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &model.NotFoundError{Resource: "upload", ID: storedName}
	}
	if err != nil {
		return nil, &model.StorageError{Op: "read attachment", Err: err}
	}
	return data, nil
}

// Open returns an open handle for streaming responses. The caller closes it.
func (s *AttachmentStore) Open(storedName string) (*os.File, os.FileInfo, error) {
	path, err := s.resolve(storedName)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, &model.NotFoundError{Resource: "upload", ID: storedName}
	}
	if err != nil {
		return nil, nil, &model.StorageError{Op: "open attachment", Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, &model.StorageError{Op: "stat attachment", Err: err}
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, &model.NotFoundError{Resource: "upload", ID: storedName}
	}
	return f, info, nil
}

func (s *AttachmentStore) resolve(storedName string) (string, error) {
	if storedName == "" || storedName == "." || storedName == ".." ||
		strings.ContainsAny(storedName, `/\`) || filepath.Base(storedName) != storedName {
		return "", &model.ValidationError{Field: "filename", Reason: "invalid upload name"}
	}
	return filepath.Join(s.dir, storedName), nil
}
