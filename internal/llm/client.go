// Package llm provides completion client interfaces and implementations.
package llm

import (
	"context"
	"fmt"

	"github.com/capitalize-ai/artifact-chat/internal/model"
)

// CompletionRequest represents a completion request. An empty Model means
// the client's default model or deployment.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for completion providers. Implementations return
// *ProviderError for every failure.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAzure     Provider = "azure"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Settings selects and configures a provider.
type Settings struct {
	Provider   Provider
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
}

// NewClient creates a client for the configured provider. Missing
// credentials fail with model.ErrConfiguration before any client is built.
func NewClient(s Settings) (Client, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("%w: %s API key is not set", model.ErrConfiguration, s.Provider)
	}

	switch s.Provider {
	case ProviderAzure, "":
		if s.Endpoint == "" {
			return nil, fmt.Errorf("%w: azure endpoint is not set", model.ErrConfiguration)
		}
		return NewAzureOpenAIClient(s.Endpoint, s.APIKey, s.Deployment, s.APIVersion)
	case ProviderOpenAI:
		return NewOpenAIClient(s.APIKey)
	case ProviderAnthropic:
		return NewAnthropicClient(s.APIKey)
	default:
		return nil, fmt.Errorf("%w: unknown LLM provider %q", model.ErrConfiguration, s.Provider)
	}
}
