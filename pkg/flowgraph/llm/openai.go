package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	fgerrors "github.com/randalmurphal/archflow/pkg/flowgraph/errors"
)

// OpenAIClient implements Client against any OpenAI-compatible chat
// completions endpoint: OpenAI itself, Gemini, Anthropic and Ollama all
// expose one.
type OpenAIClient struct {
	client     *openai.Client
	provider   string
	model      string
	jsonSchema bool
}

// OpenAIOption configures OpenAIClient.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	baseURL    string
	provider   string
	model      string
	httpClient *http.Client
	jsonSchema bool
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) { c.baseURL = url }
}

// WithProviderName labels errors from this client.
func WithProviderName(name string) OpenAIOption {
	return func(c *openAIConfig) { c.provider = name }
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) OpenAIOption {
	return func(c *openAIConfig) { c.model = model }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *openAIConfig) { c.httpClient = hc }
}

// WithJSONSchema controls whether ResponseFormat is sent as a json_schema
// response format. When false, the endpoint is only asked for a JSON object.
func WithJSONSchema(enabled bool) OpenAIOption {
	return func(c *openAIConfig) { c.jsonSchema = enabled }
}

// NewOpenAIClient creates a client authenticating with apiKey.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	cfg := openAIConfig{provider: "openai", jsonSchema: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	oc := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.baseURL, "/")
	}
	if cfg.httpClient != nil {
		oc.HTTPClient = cfg.httpClient
	}

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(oc),
		provider:   cfg.provider,
		model:      cfg.model,
		jsonSchema: cfg.jsonSchema,
	}
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		return nil, c.wrap(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Op: "complete", Provider: c.provider, Err: ErrEmptyResponse}
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Duration:     time.Since(start),
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}.Normalize(),
	}, nil
}

func (c *OpenAIClient) buildRequest(req CompletionRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	out := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature(req.Temperature),
	}

	if req.ResponseFormat != nil {
		if c.jsonSchema {
			out.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   req.ResponseFormat.Name,
					Schema: req.ResponseFormat.Schema,
				},
			}
		} else {
			out.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			}
		}
	}
	return out
}

// temperature maps t onto the wire value. The library drops a zero
// temperature from the request, so zero is sent as the smallest float32.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// wrap converts library errors into *Error with an HTTPError cause, so the
// error category sees the status code.
func (c *OpenAIClient) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &Error{Op: "complete", Provider: c.provider, Err: ctx.Err()}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Op: "complete", Provider: c.provider, Err: &fgerrors.HTTPError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
		}}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.HTTPStatus
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &Error{Op: "complete", Provider: c.provider, Err: &fgerrors.HTTPError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
		}}
	}

	return &Error{Op: "complete", Provider: c.provider, Err: fmt.Errorf("request failed: %w", err)}
}
