package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"

	"github.com/capitalize-ai/artifact-chat/internal/model"
)

// ProviderError is the single error type surfaced for any completion
// failure: timeouts, rate limits, malformed responses and auth failures.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return model.ErrProvider.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", model.ErrProvider, e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", model.ErrProvider, e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == model.ErrProvider }

// Temporary reports whether retrying the same request may succeed.
func (e *ProviderError) Temporary() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// NewProviderError wraps err, extracting the HTTP status when the SDK
// exposes one.
func NewProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	out := &ProviderError{Provider: provider, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var anthropicErr *anthropic.Error
	switch {
	case errors.As(err, &apiErr):
		out.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		out.StatusCode = reqErr.HTTPStatusCode
	case errors.As(err, &anthropicErr):
		out.StatusCode = anthropicErr.StatusCode
	}
	return out
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Temporary()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
