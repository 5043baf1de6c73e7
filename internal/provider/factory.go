package provider

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	fgerrors "github.com/randalmurphal/archflow/pkg/flowgraph/errors"
	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
)

// Factory builds LLM clients from a Config and a Tier.
// A Factory is safe for concurrent use.
type Factory struct {
	registry    *Registry
	retry       fgerrors.RetryConfig
	callTimeout time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithRegistry replaces the built-in providers.
func WithRegistry(r *Registry) Option {
	return func(f *Factory) { f.registry = r }
}

// WithRetry sets the retry policy applied to every client.
func WithRetry(cfg fgerrors.RetryConfig) Option {
	return func(f *Factory) { f.retry = cfg }
}

// WithMaxAttempts keeps the default backoff but changes the attempt count.
func WithMaxAttempts(n int) Option {
	return func(f *Factory) {
		if n > 0 {
			f.retry.MaxAttempts = n
		}
	}
}

// WithCallTimeout bounds every model call. Zero means no bound.
func WithCallTimeout(d time.Duration) Option {
	return func(f *Factory) { f.callTimeout = d }
}

// WithHTTPClient sets the HTTP client used by HTTP providers.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Factory) { f.httpClient = hc }
}

// WithLogger logs retries.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) { f.logger = logger }
}

// NewFactory creates a Factory over DefaultRegistry.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		registry: DefaultRegistry(),
		retry:    fgerrors.DefaultRetry,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Registry returns the providers known to f.
func (f *Factory) Registry() *Registry {
	return f.registry
}

// Check validates cfg without building a client. It returns
// *UnknownProviderError or *MissingCredentialsError.
func (f *Factory) Check(cfg Config) error {
	_, err := f.spec(cfg.normalized())
	return err
}

func (f *Factory) spec(cfg Config) (Spec, error) {
	spec, ok := f.registry.Get(cfg.Name)
	if !ok {
		return Spec{}, &UnknownProviderError{Name: cfg.Name, Known: f.registry.Names()}
	}
	if spec.RequiresKey() && cfg.APIKey == "" {
		return Spec{}, &MissingCredentialsError{Provider: spec.Name, EnvVars: spec.CredentialEnv}
	}
	return spec, nil
}

// Model returns the model identifier cfg resolves to for tier.
func (f *Factory) Model(cfg Config, tier Tier) (string, error) {
	cfg = cfg.normalized()
	if !tier.Valid() {
		return "", &UnknownTierError{Tier: tier}
	}
	spec, ok := f.registry.Get(cfg.Name)
	if !ok {
		return "", &UnknownProviderError{Name: cfg.Name, Known: f.registry.Names()}
	}
	if cfg.ModelOverride != "" {
		return cfg.ModelOverride, nil
	}
	return spec.Models[tier], nil
}

// Client returns a client bound to the tier's model. Requests sent with a
// zero Temperature are sampled deterministically. Transient failures are
// retried inside the returned client.
func (f *Factory) Client(cfg Config, tier Tier) (llm.Client, error) {
	cfg = cfg.normalized()
	spec, err := f.spec(cfg)
	if err != nil {
		return nil, err
	}
	model, err := f.Model(cfg, tier)
	if err != nil {
		return nil, err
	}

	baseURL := spec.BaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	raw := spec.Build(BuildParams{
		Config:     cfg,
		Model:      model,
		BaseURL:    baseURL,
		HTTPClient: f.httpClient,
	})

	opts := []llm.RetryOption{
		llm.WithRetryConfig(f.retry),
		llm.WithCallTimeout(f.callTimeout),
	}
	if f.logger != nil {
		opts = append(opts, llm.WithRetryLogger(f.logger.With(slog.String("provider", spec.Name))))
	}
	return &boundClient{inner: llm.NewRetryingClient(raw, opts...), model: model}, nil
}

// boundClient fills in the model on requests that name none.
type boundClient struct {
	inner llm.Client
	model string
}

func (c *boundClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	return c.inner.Complete(ctx, req)
}
