package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted Client for tests.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	usage     TokenUsage
	err       error
	handler   func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	next      int

	// Calls records every request in order.
	Calls []CompletionRequest
}

// NewMockClient returns a client that always answers response.
func NewMockClient(response string) *MockClient {
	return &MockClient{responses: []string{response}}
}

// WithResponses answers with responses in order, cycling at the end.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.next = 0
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithUsage reports usage on every response instead of an estimate.
func (m *MockClient) WithUsage(usage TokenUsage) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = usage
	return m
}

// WithHandler answers every call with fn. Calls are still recorded.
func (m *MockClient) WithHandler(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	handler, err := m.handler, m.err
	m.mu.Unlock()

	if handler != nil {
		return handler(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var content string
	if len(m.responses) > 0 {
		content = m.responses[m.next%len(m.responses)]
		m.next++
	}

	usage := m.usage
	if usage.IsZero() {
		usage = TokenUsage{
			PromptTokens:     estimateTokens(req),
			CompletionTokens: max(len(content)/4, 1),
		}
	}

	return &CompletionResponse{
		Content:      content,
		Model:        req.Model,
		FinishReason: "stop",
		Usage:        usage.Normalize(),
	}, nil
}

// CallCount returns the number of calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	last := m.Calls[len(m.Calls)-1]
	return &last
}

// Reset clears recorded calls and restarts the response sequence.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.next = 0
}

// estimateTokens approximates prompt size at four characters per token.
func estimateTokens(req CompletionRequest) int {
	n := len(req.SystemPrompt)
	for _, msg := range req.Messages {
		n += len(msg.Content)
	}
	return max(n/4, 1)
}
