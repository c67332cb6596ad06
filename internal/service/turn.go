package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/artifact-chat/internal/artifact"
	"github.com/capitalize-ai/artifact-chat/internal/llm"
	"github.com/capitalize-ai/artifact-chat/internal/model"
	"github.com/capitalize-ai/artifact-chat/internal/prompt"
	"github.com/capitalize-ai/artifact-chat/pkg/logger"
	"github.com/capitalize-ai/artifact-chat/pkg/metrics"
)

var tracer = otel.Tracer("github.com/capitalize-ai/artifact-chat/internal/service")

// TurnState is a step of the send-message pipeline.
type TurnState string

const (
	StateReceived               TurnState = "received"
	StateFilesPersisted         TurnState = "files_persisted"
	StateUserTurnCommitted      TurnState = "user_turn_committed"
	StateHistoryBuilt           TurnState = "history_built"
	StateProviderCalled         TurnState = "provider_called"
	StateResponseParsed         TurnState = "response_parsed"
	StateAssistantTurnCommitted TurnState = "assistant_turn_committed"
	StateTitleSet               TurnState = "title_set"
	StatePersisted              TurnState = "persisted"
	StateRolledBack             TurnState = "rolled_back"
)

// EventPublisher receives turn lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.TurnEvent) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// PublishEvent implements EventPublisher.
func (NopPublisher) PublishEvent(context.Context, *model.TurnEvent) error { return nil }

// TurnOptions tunes the completion call of each turn.
type TurnOptions struct {
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	HistoryLimit int
}

// TurnService runs the send-message pipeline.
type TurnService struct {
	repo        ConversationRepository
	attachments *AttachmentService
	llm         llm.Client
	extractor   *artifact.Extractor
	publisher   EventPublisher
	opts        TurnOptions
	locks       *conversationLocks
	logger      *logger.Logger
	now         func() time.Time
	newID       func() string
}

// NewTurnService creates a turn service. A nil client makes every Send
// fail with ErrConfiguration; a nil publisher disables events.
func NewTurnService(
	repo ConversationRepository,
	attachments *AttachmentService,
	client llm.Client,
	publisher EventPublisher,
	opts TurnOptions,
	log *logger.Logger,
) *TurnService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &TurnService{
		repo:        repo,
		attachments: attachments,
		llm:         client,
		extractor:   artifact.New(),
		publisher:   publisher,
		opts:        opts,
		locks:       newConversationLocks(),
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// turn tracks the progress of one Send call.
type turn struct {
	state TurnState
	log   *logger.Logger
}

func (t *turn) advance(next TurnState) {
	t.log.Debug("turn state", zap.String("from", string(t.state)), zap.String("to", string(next)))
	t.state = next
}

// Send appends a user message, asks the provider for a reply and commits
// both, or neither. The first exchange of a conversation also sets its
// title. Turns on the same conversation are serialized.
func (s *TurnService) Send(ctx context.Context, req *model.SendMessageRequest) (*model.Conversation, error) {
	ctx, span := tracer.Start(ctx, "turn.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", req.ConversationID),
		attribute.Int("turn.files", len(req.Files)),
	)

	conv, err := s.send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return conv, nil
}

func (s *TurnService) send(ctx context.Context, req *model.SendMessageRequest) (*model.Conversation, error) {
	t := &turn{state: StateReceived, log: s.logger.ForConversation(req.ConversationID)}

	if s.llm == nil {
		metrics.TurnsTotal.WithLabelValues("config_error").Inc()
		return nil, fmt.Errorf("%w: no completion provider configured", model.ErrConfiguration)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, &model.ValidationError{Field: "message", Reason: "cannot be empty"}
	}

	release, err := s.locks.acquire(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	metrics.TurnsInFlight.Inc()
	defer metrics.TurnsInFlight.Dec()

	if _, err := s.repo.Get(ctx, req.ConversationID); err != nil {
		return nil, err
	}

	files, err := s.persistFiles(ctx, req.Files)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("storage_error").Inc()
		return nil, err
	}
	t.advance(StateFilesPersisted)

	userMsg := model.Message{
		ID:        s.newID(),
		Role:      model.RoleUser,
		Content:   req.Content,
		Timestamp: s.now(),
		Files:     files,
	}
	conv, err := s.repo.AppendMessage(ctx, req.ConversationID, userMsg)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("storage_error").Inc()
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()
	t.advance(StateUserTurnCommitted)

	history := prompt.Render(conv, prompt.Options{MaxMessages: s.opts.HistoryLimit})
	t.advance(StateHistoryBuilt)

	resp, err := s.complete(ctx, "chat", &llm.CompletionRequest{
		Messages:    history,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	t.advance(StateProviderCalled)
	if err != nil {
		return nil, s.rollback(ctx, t, req.ConversationID, userMsg.ID, err)
	}

	narrative, artifacts := s.extractor.Extract(resp.Content)
	for _, a := range artifacts {
		metrics.RecordArtifact(a.Language)
	}
	t.advance(StateResponseParsed)

	assistantMsg := model.Message{
		ID:        s.newID(),
		Role:      model.RoleAssistant,
		Content:   narrative,
		Timestamp: s.now(),
		Artifacts: artifacts,
	}
	conv, err = s.repo.AppendMessage(ctx, req.ConversationID, assistantMsg)
	if err != nil {
		// Keep the user/assistant pairing intact.
		return nil, s.rollback(ctx, t, req.ConversationID, userMsg.ID, err)
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
	t.advance(StateAssistantTurnCommitted)

	if len(conv.Messages) == 2 {
		conv = s.applyTitle(ctx, t, conv, req.Content)
	}

	t.advance(StatePersisted)
	metrics.TurnsTotal.WithLabelValues("completed").Inc()
	s.publish(ctx, t, &model.TurnEvent{
		ConversationID: conv.ID,
		Type:           model.EventTypeTurnCompleted,
		MessageID:      assistantMsg.ID,
		Metadata: map[string]any{
			"artifacts":  len(artifacts),
			"tokens_in":  resp.TokensIn,
			"tokens_out": resp.TokensOut,
		},
	})

	t.log.Info("turn completed",
		zap.String("message_id", assistantMsg.ID),
		zap.Int("artifacts", len(artifacts)),
		zap.Int("messages", len(conv.Messages)),
	)
	return conv, nil
}

// persistFiles stores every upload. Files written before a failure stay
// on disk.
func (s *TurnService) persistFiles(ctx context.Context, uploads []model.FileUpload) ([]model.Attachment, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	files := make([]model.Attachment, 0, len(uploads))
	for _, u := range uploads {
		att, err := s.attachments.Save(ctx, u)
		if err != nil {
			return nil, err
		}
		files = append(files, *att)
	}
	return files, nil
}

// complete calls the provider under the configured timeout.
func (s *TurnService) complete(ctx context.Context, purpose string, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, span := tracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", s.llm.Name()),
		attribute.String("llm.purpose", purpose),
	)

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.llm.Complete(ctx, req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordLLMCall(s.llm.Name(), purpose, "error", elapsed, 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, llm.NewProviderError(s.llm.Name(), err)
	}

	metrics.RecordLLMCall(s.llm.Name(), purpose, "success", elapsed, resp.TokensIn, resp.TokensOut)
	span.SetAttributes(
		attribute.Int("llm.tokens_in", resp.TokensIn),
		attribute.Int("llm.tokens_out", resp.TokensOut),
	)
	return resp, nil
}

// rollback removes the user message committed by this turn. It runs on a
// context detached from ctx so an abandoned request still restores state.
func (s *TurnService) rollback(ctx context.Context, t *turn, conversationID, userMessageID string, cause error) error {
	ctx = context.WithoutCancel(ctx)

	outcome := "provider_error"
	if !errors.Is(cause, model.ErrProvider) {
		outcome = "storage_error"
	}
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()

	if _, err := s.repo.RemoveLastMessage(ctx, conversationID); err != nil {
		t.log.Error("rollback failed",
			zap.String("message_id", userMessageID),
			zap.Error(err),
			zap.NamedError("cause", cause),
		)
		return fmt.Errorf("%w; rollback failed: %w", cause, err)
	}
	t.advance(StateRolledBack)

	t.log.Warn("turn rolled back", zap.String("message_id", userMessageID), zap.Error(cause))
	s.publish(ctx, t, &model.TurnEvent{
		ConversationID: conversationID,
		Type:           model.EventTypeTurnRolledBack,
		MessageID:      userMessageID,
		Reason:         cause.Error(),
	})
	return cause
}

// applyTitle replaces the placeholder title after the first exchange. It
// never overwrites a title that is no longer the placeholder. Failures
// leave the placeholder in place.
func (s *TurnService) applyTitle(ctx context.Context, t *turn, conv *model.Conversation, seed string) *model.Conversation {
	ctx, span := tracer.Start(ctx, "turn.title")
	defer span.End()

	title, err := s.summarize(ctx, seed)
	if err != nil {
		t.log.Warn("title generation failed", zap.Error(err))
		span.RecordError(err)
		return conv
	}

	// Rename does not take the turn lock, so a user title set meanwhile wins.
	titled, applied, err := s.repo.SetTitleIfDefault(ctx, conv.ID, title)
	if err != nil {
		t.log.Error("failed to save title", zap.Error(err))
		span.RecordError(err)
		return conv
	}
	if !applied {
		t.log.Debug("title already set, keeping it", zap.String("title", titled.Title))
		return titled
	}
	t.advance(StateTitleSet)

	s.publish(ctx, t, &model.TurnEvent{
		ConversationID: conv.ID,
		Type:           model.EventTypeTitleSet,
		Metadata:       map[string]any{"title": title},
	})
	return titled
}

func (s *TurnService) summarize(ctx context.Context, seed string) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	title, err := llm.SummarizeTitle(ctx, s.llm, seed)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordLLMCall(s.llm.Name(), "title", status, time.Since(start).Seconds(), 0, 0)
	return title, err
}

// publish is best effort; a broken event stream never fails a turn.
func (s *TurnService) publish(ctx context.Context, t *turn, event *model.TurnEvent) {
	event.ID = s.newID()
	event.CreatedAt = s.now()
	if err := s.publisher.PublishEvent(context.WithoutCancel(ctx), event); err != nil {
		t.log.Warn("failed to publish turn event",
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}
