package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryingClient retries transient provider failures with bounded
// exponential backoff. Permanent failures (auth, bad request) and
// cancellation are returned immediately.
type RetryingClient struct {
	next            Client
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewRetryingClient wraps next. maxRetries <= 0 disables retries.
func NewRetryingClient(next Client, maxRetries int, initialInterval time.Duration) *RetryingClient {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if initialInterval <= 0 {
		initialInterval = 500 * time.Millisecond
	}
	return &RetryingClient{
		next:            next,
		maxRetries:      uint64(maxRetries),
		initialInterval: initialInterval,
		maxInterval:     10 * time.Second,
	}
}

// Name returns the wrapped provider name.
func (c *RetryingClient) Name() string {
	return c.next.Name()
}

// Complete calls the wrapped client until it succeeds, fails permanently or
// the retry budget is spent.
func (c *RetryingClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse

	op := func() error {
		r, err := c.next.Complete(ctx, req)
		if err != nil {
			if ctx.Err() != nil || !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, NewProviderError(c.Name(), err)
	}
	return resp, nil
}
