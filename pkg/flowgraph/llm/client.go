// Package llm is the model-calling layer: a small Client interface, request
// and response types, and implementations for OpenAI-compatible HTTP
// endpoints, the claude CLI, and tests.
package llm

import "context"

// Client sends a completion request to a model.
//
// Implementations must be safe for concurrent use and must honor ctx for
// cancellation and deadlines.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

// Complete implements Client.
func (f ClientFunc) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return f(ctx, req)
}
