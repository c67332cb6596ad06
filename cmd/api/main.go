// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/artifact-chat/internal/config"
	"github.com/capitalize-ai/artifact-chat/internal/handler"
	"github.com/capitalize-ai/artifact-chat/internal/llm"
	natsclient "github.com/capitalize-ai/artifact-chat/internal/nats"
	"github.com/capitalize-ai/artifact-chat/internal/service"
	"github.com/capitalize-ai/artifact-chat/internal/storage"
	"github.com/capitalize-ai/artifact-chat/pkg/logger"
	"github.com/capitalize-ai/artifact-chat/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("starting API server", zap.String("store_backend", cfg.StoreBackend))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "artifact-chat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	backend, err := storage.NewBackend(cfg.StoreBackend, cfg.StorePath())
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	repo, err := storage.NewRepository(ctx, backend)
	if err != nil {
		backend.Close()
		return fmt.Errorf("load conversations: %w", err)
	}
	defer repo.Close()

	store, err := storage.NewAttachmentStore(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("open upload dir: %w", err)
	}

	// Events are optional; an empty NATS_URL disables them.
	var publisher service.EventPublisher
	var events handler.Pinger
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer natsClient.Close()

		eventPublisher := natsclient.NewEventPublisher(natsClient)
		if err := eventPublisher.EnsureStream(ctx); err != nil {
			return fmt.Errorf("ensure event stream: %w", err)
		}
		publisher = eventPublisher
		events = natsClient
	}

	// A missing credential is reported per request, not at startup.
	llmClient, err := newLLMClient(cfg)
	if err != nil {
		log.Warn("completion provider unavailable, chat requests will fail", zap.Error(err))
	}

	attachmentSvc := service.NewAttachmentService(store, log)
	conversationSvc := service.NewConversationService(repo, log)
	turnSvc := service.NewTurnService(repo, attachmentSvc, llmClient, publisher, service.TurnOptions{
		Temperature:  cfg.LLMTemperature,
		MaxTokens:    cfg.LLMMaxTokens,
		Timeout:      cfg.LLMTimeout,
		HistoryLimit: cfg.LLMHistoryLimit,
	}, log)

	router := handler.NewRouter(handler.Routes{
		Health:            handler.NewHealthHandler(events, llmClient != nil),
		Conversations:     handler.NewConversationHandler(conversationSvc),
		Messages:          handler.NewMessageHandler(turnSvc, cfg.MaxUploadMemory),
		Uploads:           handler.NewUploadHandler(attachmentSvc, cfg.MaxUploadMemory),
		Logger:            log,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

// newLLMClient builds the configured provider wrapped in bounded retries.
// It returns a nil client and a configuration error when credentials are
// missing.
func newLLMClient(cfg *config.Config) (llm.Client, error) {
	settings := llm.Settings{
		Provider:   llm.Provider(cfg.LLMProvider),
		Endpoint:   cfg.AzureOpenAIEndpoint,
		Deployment: cfg.AzureOpenAIDeployment,
		APIVersion: cfg.AzureOpenAIAPIVersion,
	}
	switch settings.Provider {
	case llm.ProviderOpenAI:
		settings.APIKey = cfg.OpenAIAPIKey
	case llm.ProviderAnthropic:
		settings.APIKey = cfg.AnthropicAPIKey
	default:
		settings.APIKey = cfg.AzureOpenAIAPIKey
	}

	client, err := llm.NewClient(settings)
	if err != nil {
		return nil, err
	}
	if cfg.LLMMaxRetries > 0 {
		return llm.NewRetryingClient(client, cfg.LLMMaxRetries, 500*time.Millisecond), nil
	}
	return client, nil
}
