// Package service provides business logic for the chat backend.
package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/artifact-chat/internal/model"
	"github.com/capitalize-ai/artifact-chat/pkg/logger"
	"github.com/capitalize-ai/artifact-chat/pkg/metrics"
)

// ConversationRepository is the durable conversation table.
type ConversationRepository interface {
	Create(ctx context.Context) (*model.Conversation, error)
	Get(ctx context.Context, id string) (*model.Conversation, error)
	List(ctx context.Context) ([]model.ConversationSummary, error)
	AppendMessage(ctx context.Context, id string, msg model.Message) (*model.Conversation, error)
	RemoveLastMessage(ctx context.Context, id string) (*model.Conversation, error)
	SetTitle(ctx context.Context, id, title string) (*model.Conversation, error)
	SetTitleIfDefault(ctx context.Context, id, title string) (*model.Conversation, bool, error)
}

// ConversationService handles conversation operations.
type ConversationService struct {
	repo   ConversationRepository
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(repo ConversationRepository, log *logger.Logger) *ConversationService {
	return &ConversationService{
		repo:   repo,
		logger: log,
	}
}

// Create creates a new empty conversation.
func (s *ConversationService) Create(ctx context.Context) (*model.Conversation, error) {
	conv, err := s.repo.Create(ctx)
	if err != nil {
		return nil, err
	}

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation created", zap.String("conversation_id", conv.ID))
	return conv, nil
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	return s.repo.Get(ctx, conversationID)
}

// List returns conversation summaries, most recently updated first.
func (s *ConversationService) List(ctx context.Context) ([]model.ConversationSummary, error) {
	return s.repo.List(ctx)
}

// Rename overwrites the conversation title.
func (s *ConversationService) Rename(ctx context.Context, conversationID, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &model.ValidationError{Field: "title", Reason: "cannot be empty"}
	}

	conv, err := s.repo.SetTitle(ctx, conversationID, title)
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversation renamed", zap.String("conversation_id", conversationID))
	return conv, nil
}
