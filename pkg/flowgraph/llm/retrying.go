package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	fgerrors "github.com/randalmurphal/archflow/pkg/flowgraph/errors"
)

// RetryingClient retries transient failures of an inner Client and bounds
// each attempt with a timeout.
type RetryingClient struct {
	inner   Client
	retry   fgerrors.RetryConfig
	timeout time.Duration
	logger  *slog.Logger
}

// RetryOption configures RetryingClient.
type RetryOption func(*RetryingClient)

// WithRetryConfig sets the retry policy.
func WithRetryConfig(cfg fgerrors.RetryConfig) RetryOption {
	return func(c *RetryingClient) { c.retry = cfg }
}

// WithCallTimeout bounds each attempt. Zero means no bound.
func WithCallTimeout(d time.Duration) RetryOption {
	return func(c *RetryingClient) { c.timeout = d }
}

// WithRetryLogger logs each retry at warn level.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(c *RetryingClient) { c.logger = logger }
}

// NewRetryingClient wraps inner.
func NewRetryingClient(inner Client, opts ...RetryOption) *RetryingClient {
	c := &RetryingClient{
		inner: inner,
		retry: fgerrors.DefaultRetry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete implements Client.
func (c *RetryingClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	cfg := c.retry
	cfg.RetryableFunc = IsRetryable
	if c.logger != nil {
		onRetry := cfg.OnRetry
		cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
			c.logger.Warn("model call failed, retrying",
				slog.String("model", req.Model),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()))
			if onRetry != nil {
				onRetry(attempt, err, wait)
			}
		}
	}

	res := fgerrors.Retry(ctx, cfg, func(parent context.Context) (*CompletionResponse, error) {
		if c.timeout <= 0 {
			return c.inner.Complete(parent, req)
		}
		ctx, cancel := context.WithTimeout(parent, c.timeout)
		defer cancel()
		resp, err := c.inner.Complete(ctx, req)
		if err != nil && parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &fgerrors.TimeoutError{Operation: "model call", Duration: c.timeout.String(), Err: err}
		}
		return resp, err
	})
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Value, nil
}
