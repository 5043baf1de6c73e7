// Package agents implements the role-played architecture agents. Each agent
// renders its prompt template, makes exactly one structured call and
// returns the typed document with the tokens it spent. Agents never see
// pipeline bookkeeping such as the retry count or the task.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/archflow/internal/prompt"
	"github.com/randalmurphal/archflow/internal/structured"
	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
)

// ErrMissingInput is returned when an agent is called without a document
// it depends on.
var ErrMissingInput = errors.New("missing agent input")

// call renders tmpl and generates a T from it.
func call[T any](ctx context.Context, client llm.Client, tmpl prompt.Template, vars prompt.Vars) (T, llm.TokenUsage, error) {
	system, human, err := tmpl.Render(vars)
	if err != nil {
		var zero T
		return zero, llm.TokenUsage{}, err
	}
	return structured.Generate[T](ctx, client, structured.Request{System: system, Human: human})
}

// loggerFrom returns the logger carried by a flowgraph context, or the
// default logger.
func loggerFrom(ctx context.Context) *slog.Logger {
	if lc, ok := ctx.(interface{ Logger() *slog.Logger }); ok {
		if l := lc.Logger(); l != nil {
			return l
		}
	}
	return slog.Default()
}

// toJSON renders a document for a prompt.
func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode prompt input: %w", err)
	}
	return string(data), nil
}

func missing(what string) error {
	return fmt.Errorf("%w: %s", ErrMissingInput, what)
}
