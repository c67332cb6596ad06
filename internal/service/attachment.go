package service

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/capitalize-ai/artifact-chat/internal/model"
	"github.com/capitalize-ai/artifact-chat/pkg/logger"
	"github.com/capitalize-ai/artifact-chat/pkg/metrics"
)

// UploadURLPrefix is the route stored attachments are served under.
const UploadURLPrefix = "/api/uploads/"

// AttachmentStore persists raw upload bytes.
type AttachmentStore interface {
	Store(ctx context.Context, filename, contentType string, data []byte) (*model.Attachment, error)
	Open(storedName string) (*os.File, os.FileInfo, error)
}

// AttachmentService stores uploads and hands out retrieval URLs.
type AttachmentService struct {
	store  AttachmentStore
	logger *logger.Logger
}

// NewAttachmentService creates a new attachment service.
func NewAttachmentService(store AttachmentStore, log *logger.Logger) *AttachmentService {
	return &AttachmentService{
		store:  store,
		logger: log,
	}
}

// Save persists one file.
func (s *AttachmentService) Save(ctx context.Context, file model.FileUpload) (*model.Attachment, error) {
	att, err := s.store.Store(ctx, file.Filename, file.ContentType, file.Data)
	if err != nil {
		return nil, err
	}

	metrics.RecordAttachment(len(file.Data))
	s.logger.Debug("attachment stored",
		zap.String("attachment_id", att.ID),
		zap.String("name", att.Name),
		zap.Int("bytes", len(file.Data)),
	)
	return att, nil
}

// Upload persists a standalone file and returns its descriptor with URL.
func (s *AttachmentService) Upload(ctx context.Context, file model.FileUpload) (*model.UploadResponse, error) {
	att, err := s.Save(ctx, file)
	if err != nil {
		return nil, err
	}
	return &model.UploadResponse{
		Attachment: *att,
		URL:        UploadURLPrefix + att.StoredName(),
	}, nil
}

// Open returns a handle to a stored file. The caller closes it.
func (s *AttachmentService) Open(storedName string) (*os.File, os.FileInfo, error) {
	return s.store.Open(storedName)
}
