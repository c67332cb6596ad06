package service

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/artifact-chat/internal/artifact"
	"github.com/capitalize-ai/artifact-chat/internal/llm"
	"github.com/capitalize-ai/artifact-chat/internal/model"
	"github.com/capitalize-ai/artifact-chat/internal/storage"
	"github.com/capitalize-ai/artifact-chat/pkg/logger"
)

type completeFunc func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error)

// fakeLLM answers chat and title requests from separate funcs.
type fakeLLM struct {
	mu         sync.Mutex
	chat       completeFunc
	title      completeFunc
	chatReqs   []*llm.CompletionRequest
	titleCalls int
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		chat: func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "Hi there"}, nil
		},
		title: func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: ` "Friendly Greeting" `}, nil
		},
	}
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	fn := f.chat
	if len(req.Messages) > 0 && req.Messages[0].Content == llm.TitleInstruction {
		fn = f.title
		f.titleCalls++
	} else {
		f.chatReqs = append(f.chatReqs, req)
	}
	f.mu.Unlock()
	return fn(ctx, req)
}

func (f *fakeLLM) titles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.titleCalls
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*model.TurnEvent
	err    error
}

func (p *fakePublisher) PublishEvent(_ context.Context, event *model.TurnEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *fakePublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type turnFixture struct {
	svc   *TurnService
	repo  *storage.Repository
	store *storage.AttachmentStore
	pub   *fakePublisher
}

func newTurnFixture(t *testing.T, client llm.Client, opts TurnOptions) *turnFixture {
	t.Helper()
	dir := t.TempDir()

	backend, err := storage.NewJSONFileBackend(filepath.Join(dir, "conversations.json"))
	require.NoError(t, err)
	repo, err := storage.NewRepository(context.Background(), backend)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	store, err := storage.NewAttachmentStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	pub := &fakePublisher{}
	attachments := NewAttachmentService(store, logger.Nop())
	svc := NewTurnService(repo, attachments, client, pub, opts, logger.Nop())
	return &turnFixture{svc: svc, repo: repo, store: store, pub: pub}
}

func (f *turnFixture) newConversation(t *testing.T) *model.Conversation {
	t.Helper()
	conv, err := f.repo.Create(context.Background())
	require.NoError(t, err)
	return conv
}

func (f *turnFixture) storedFiles(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(f.store.Dir())
	require.NoError(t, err)
	return entries
}

func TestSend_FirstExchangeSetsTitle(t *testing.T) {
	client := newFakeLLM()
	f := newTurnFixture(t, client, TurnOptions{Temperature: 0.7, MaxTokens: 1000})
	conv := f.newConversation(t)

	got, err := f.svc.Send(context.Background(), &model.SendMessageRequest{
		ConversationID: conv.ID,
		Content:        "Hello",
	})
	require.NoError(t, err)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, model.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "Hello", got.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "Hi there", got.Messages[1].Content)
	assert.Empty(t, got.Messages[1].Artifacts)
	assert.Equal(t, "Friendly Greeting", got.Title)

	stored, err := f.repo.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Title, stored.Title)
	assert.Len(t, stored.Messages, 2)

	require.Len(t, client.chatReqs, 1)
	assert.Equal(t, 0.7, client.chatReqs[0].Temperature)
	assert.Equal(t, 1000, client.chatReqs[0].MaxTokens)

	assert.Equal(t, []model.EventType{model.EventTypeTitleSet, model.EventTypeTurnCompleted}, f.pub.types())
}

func TestSend_ExtractsArtifacts(t *testing.T) {
	client := newFakeLLM()
	client.chat = func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: "Here you go:\n```python\nprint('hi')\n```\nEnjoy."}, nil
	}
	f := newTurnFixture(t, client, TurnOptions{})
	conv := f.newConversation(t)

	got, err := f.svc.Send(context.Background(), &model.SendMessageRequest{
		ConversationID: conv.ID,
		Content:        "write hello world in python",
	})
	require.NoError(t, err)

	reply := got.Messages[1]
	require.Len(t, reply.Artifacts, 1)
	a := reply.Artifacts[0]
	assert.Equal(t, "python", a.Language)
	assert.Equal(t, "print('hi')", a.Content)
	assert.Equal(t, model.ArtifactTypeCode, a.Type)
	assert.Contains(t, reply.Content, artifact.Reference(a.ID))
	assert.NotContains(t, reply.Content, "```")
}

func TestSend_ProviderFailureRollsBack(t *testing.T) {
	client := newFakeLLM()
	client.chat = func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, &llm.ProviderError{Provider: "fake", StatusCode: http.StatusBadGateway, Err: errors.New("upstream down")}
	}
	f := newTurnFixture(t, client, TurnOptions{})
	conv := f.newConversation(t)

	_, err := f.svc.Send(context.Background(), &model.SendMessageRequest{
		ConversationID: conv.ID,
		Content:        "Hello",
		Files: []model.FileUpload{
			{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("keep me")},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrProvider))
	assert.Contains(t, err.Error(), "upstream down")

	stored, err := f.repo.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Messages)
	assert.Equal(t, model.DefaultTitle, stored.Title)

	entries := f.storedFiles(t)
	require.Len(t, entries, 1)
	data, err := f.store.Retrieve(context.Background(), entries[0].Name())
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))

	assert.Equal(t, []model.EventType{model.EventTypeTurnRolledBack}, f.pub.types())
	assert.Zero(t, client.titles())
}

func TestSend_NormalizesUnknownProviderErrors(t *testing.T) {
	client := newFakeLLM()
	client.chat = func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, errors.New("connection reset")
	}
	f := newTurnFixture(t, client, TurnOptions{})
	conv := f.newConversation(t)

	_, err := f.svc.Send(context.Background(), &model.SendMessageRequest{ConversationID: conv.ID, Content: "Hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrProvider))

	var pe *llm.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "fake", pe.Provider)
}

func TestSend_SecondExchangeKeepsTitle(t *testing.T) {
	client := newFakeLLM()
	f := newTurnFixture(t, client, TurnOptions{})
	conv := f.newConversation(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, &model.SendMessageRequest{ConversationID: conv.ID, Content: "Hello"})
	require.NoError(t, err)
	_, err = f.repo.SetTitle(ctx, conv.ID, "Renamed")
	require.NoError(t, err)

	got, err := f.svc.Send(ctx, &model.SendMessageRequest{ConversationID: conv.ID, Content: "And again"})
	require.NoError(t, err)

	assert.Len(t, got.Messages, 4)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, 1, client.titles())

	require.Len(t, client.chatReqs, 2)
	history := client.chatReqs[1].Messages
	require.Len(t, history, 3)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "And again", history[2].Content)
}

func TestSend_TitleFailureKeepsPlaceholder(t *testing.T) {
	client := newFakeLLM()
	client.title = func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, errors.New("title backend down")
	}
	f := newTurnFixture(t, client, TurnOptions{})
	conv := f.newConversation(t)

	got, err := f.svc.Send(context.Background(), &model.SendMessageRequest{ConversationID: conv.ID, Content: "Hello"})
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, model.DefaultTitle, got.Title)
	assert.Equal(t, []model.EventType{model.EventTypeTurnCompleted}, f.pub.types())
}

func TestSend_RenameDuringFirstExchangeIsKept(t *testing.T) {
	client := newFakeLLM()
	f := newTurnFixture(t, client, TurnOptions{})
	conv := f.newConversation(t)
	conversations := NewConversationService(f.repo, logger.Nop())

	client.chat = func(ctx context.Context, _ *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		_, err := conversations.Rename(ctx, conv.ID, "My own title")
		if err != nil {
			return nil, err
		}
		return &llm.CompletionResponse{Content: "Hi there"}, nil
	}

	got, err := f.svc.Send(context.Background(), &model.SendMessageRequest{ConversationID: conv.ID, Content: "Hello"})
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, "My own title", got.Title)

	stored, err := f.repo.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "My own title", stored.Title)
	assert.Equal(t, []model.EventType{model.EventTypeTurnCompleted}, f.pub.types())
}

func TestSend_BlankTitleKeepsPlaceholder(t *testing.T) {
	client := newFakeLLM()
	client.title = func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: `  ""  `}, nil
	}
	f := newTurnFixture(t, client, TurnOptions{})
	conv := f.newConversation(t)

	got, err := f.svc.Send(context.Background(), &model.SendMessageRequest{ConversationID: conv.ID, Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTitle, got.Title)
}

func TestSend_UnknownConversation(t *testing.T) {
	f := newTurnFixture(t, newFakeLLM(), TurnOptions{})

	_, err := f.svc.Send(context.Background(), &model.SendMessageRequest{
		ConversationID: "missing",
		Content:        "Hello",
		Files:          []model.FileUpload{{Filename: "a.txt", Data: []byte("a")}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Empty(t, f.storedFiles(t))
}

func TestSend_MissingClientIsConfigurationError(t *testing.T) {
	f := newTurnFixture(t, nil, TurnOptions{})
	conv := f.newConversation(t)

	_, err := f.svc.Send(context.Background(), &model.SendMessageRequest{
		ConversationID: conv.ID,
		Content:        "Hello",
		Files:          []model.FileUpload{{Filename: "a.txt", Data: []byte("a")}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	stored, err := f.repo.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Messages)
	assert.Empty(t, f.storedFiles(t))
}

func TestSend_EmptyContent(t *testing.T) {
	f := newTurnFixture(t, newFakeLLM(), TurnOptions{})
	conv := f.newConversation(t)

	_, err := f.svc.Send(context.Background(), &model.SendMessageRequest{ConversationID: conv.ID, Content: "  \n"})
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestSend_TimeoutRollsBack(t *testing.T) {
	client := newFakeLLM()
	client.chat = func(ctx context.Context, _ *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f := newTurnFixture(t, client, TurnOptions{Timeout: 20 * time.Millisecond})
	conv := f.newConversation(t)

	_, err := f.svc.Send(context.Background(), &model.SendMessageRequest{ConversationID: conv.ID, Content: "Hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrProvider))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	stored, err := f.repo.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Messages)
}

func TestSend_AbandonedRequestStillRollsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFakeLLM()
	client.chat = func(callCtx context.Context, _ *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		cancel()
		<-callCtx.Done()
		return nil, callCtx.Err()
	}
	f := newTurnFixture(t, client, TurnOptions{})
	conv := f.newConversation(t)

	_, err := f.svc.Send(ctx, &model.SendMessageRequest{ConversationID: conv.ID, Content: "Hello"})
	require.Error(t, err)

	stored, err := f.repo.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Messages)
	assert.Equal(t, []model.EventType{model.EventTypeTurnRolledBack}, f.pub.types())
}

func TestSend_HistoryDescribesAttachments(t *testing.T) {
	client := newFakeLLM()
	f := newTurnFixture(t, client, TurnOptions{})
	conv := f.newConversation(t)

	got, err := f.svc.Send(context.Background(), &model.SendMessageRequest{
		ConversationID: conv.ID,
		Content:        "Summarize this",
		Files: []model.FileUpload{
			{Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
		},
	})
	require.NoError(t, err)

	require.Len(t, got.Messages[0].Files, 1)
	file := got.Messages[0].Files[0]
	assert.Equal(t, "notes.txt", file.Name)
	assert.True(t, strings.HasSuffix(file.StoredName(), ".txt"))

	require.Len(t, client.chatReqs, 1)
	last := client.chatReqs[0].Messages[len(client.chatReqs[0].Messages)-1]
	assert.Equal(t, "Summarize this\n\nUploaded files:\n- notes.txt (text/plain)\n", last.Content)
}

func TestSend_SerializesSameConversation(t *testing.T) {
	var active, maxActive int32
	client := newFakeLLM()
	client.chat = func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return &llm.CompletionResponse{Content: "ok"}, nil
	}
	f := newTurnFixture(t, client, TurnOptions{})
	conv := f.newConversation(t)

	const senders = 5
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Send(context.Background(), &model.SendMessageRequest{ConversationID: conv.ID, Content: "ping"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))

	stored, err := f.repo.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2*senders)
	for i, msg := range stored.Messages {
		want := model.RoleUser
		if i%2 == 1 {
			want = model.RoleAssistant
		}
		assert.Equal(t, want, msg.Role, "message %d", i)
	}
	assert.Equal(t, 1, client.titles())
	assert.Zero(t, f.svc.locks.size())
}

func TestSend_FailedTurnLeavesOthersIntact(t *testing.T) {
	var calls int32
	client := newFakeLLM()
	client.chat = func(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if atomic.AddInt32(&calls, 1) == 2 {
			return nil, errors.New("boom")
		}
		return &llm.CompletionResponse{Content: "ok"}, nil
	}
	f := newTurnFixture(t, client, TurnOptions{})
	conv := f.newConversation(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, &model.SendMessageRequest{ConversationID: conv.ID, Content: "one"})
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, &model.SendMessageRequest{ConversationID: conv.ID, Content: "two"})
	require.Error(t, err)
	got, err := f.svc.Send(ctx, &model.SendMessageRequest{ConversationID: conv.ID, Content: "three"})
	require.NoError(t, err)

	require.Len(t, got.Messages, 4)
	assert.Equal(t, "one", got.Messages[0].Content)
	assert.Equal(t, "three", got.Messages[2].Content)
}

func TestSend_PublisherErrorDoesNotFailTurn(t *testing.T) {
	f := newTurnFixture(t, newFakeLLM(), TurnOptions{})
	f.pub.err = errors.New("stream unavailable")
	conv := f.newConversation(t)

	got, err := f.svc.Send(context.Background(), &model.SendMessageRequest{ConversationID: conv.ID, Content: "Hello"})
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
}

func TestConversationLocks_CancelledWait(t *testing.T) {
	locks := newConversationLocks()
	release, err := locks.acquire(context.Background(), "c1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.acquire(ctx, "c1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	assert.Zero(t, locks.size())
}
