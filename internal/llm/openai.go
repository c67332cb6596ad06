package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/capitalize-ai/artifact-chat/internal/model"
)

// OpenAIClient talks to OpenAI or an Azure OpenAI deployment.
type OpenAIClient struct {
	client       *openai.Client
	name         string
	defaultModel string
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", model.ErrConfiguration)
	}

	return &OpenAIClient{
		client:       openai.NewClient(apiKey),
		name:         string(ProviderOpenAI),
		defaultModel: "gpt-4o",
	}, nil
}

// NewAzureOpenAIClient creates a client bound to one Azure deployment. Every
// request is routed to deployment regardless of the requested model.
func NewAzureOpenAIClient(endpoint, apiKey, deployment, apiVersion string) (*OpenAIClient, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: Azure OpenAI endpoint and API key are required", model.ErrConfiguration)
	}
	if deployment == "" {
		return nil, fmt.Errorf("%w: Azure OpenAI deployment is required", model.ErrConfiguration)
	}

	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	if apiVersion != "" {
		cfg.APIVersion = apiVersion
	}
	cfg.AzureModelMapperFunc = func(string) string {
		return deployment
	}

	return &OpenAIClient{
		client:       openai.NewClientWithConfig(cfg),
		name:         string(ProviderAzure),
		defaultModel: deployment,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Complete sends a completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	modelName := req.Model
	if modelName == "" {
		modelName = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       modelName,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, NewProviderError(c.name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewProviderError(c.name, errors.New("response contained no choices"))
	}

	return &CompletionResponse{
		Content:    resp.Choices[0].Message.Content,
		Model:      resp.Model,
		TokensIn:   resp.Usage.PromptTokens,
		TokensOut:  resp.Usage.CompletionTokens,
		StopReason: string(resp.Choices[0].FinishReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
