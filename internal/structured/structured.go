// Package structured turns model text into typed documents.
//
// Generate is the single point where untrusted model output becomes a
// domain value: the JSON Schema of the target type is derived with
// jsonschema-go, sent with the request, and enforced on the response before
// decoding. Agents never parse model text themselves.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	fgerrors "github.com/randalmurphal/archflow/pkg/flowgraph/errors"
	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
)

// Request is the prompt pair for one structured call.
type Request struct {
	System string
	Human  string

	// Model overrides the client's bound model.
	Model string

	// MaxTokens bounds the response. Zero leaves it to the provider.
	MaxTokens int
}

// Validator is implemented by documents with constraints a schema cannot
// express. Generate runs it after decoding.
type Validator interface {
	Validate() error
}

// SchemaValidationError reports a response that could not be turned into
// the requested type. Err is a *errors.JSONParseError or *errors.ValidationError.
type SchemaValidationError struct {
	Type string
	Raw  string
	Err  error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("structured output for %s: %v", e.Type, e.Err)
}

func (e *SchemaValidationError) Unwrap() error {
	return e.Err
}

// Generate asks client for a T. The returned usage is what the provider
// reported, normalized; it is also returned alongside a
// *SchemaValidationError since the tokens were spent. Provider errors are
// returned unchanged with zero usage.
func Generate[T any](ctx context.Context, client llm.Client, req Request) (T, llm.TokenUsage, error) {
	var zero T

	schema, err := schemaFor[T]()
	if err != nil {
		return zero, llm.TokenUsage{}, err
	}

	resp, err := client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: withSchema(req.System, schema.raw),
		Messages:     []llm.Message{llm.UserMessage(req.Human)},
		Model:        req.Model,
		MaxTokens:    req.MaxTokens,
		ResponseFormat: &llm.ResponseFormat{
			Name:   schema.name,
			Schema: schema.raw,
		},
	})
	if err != nil {
		return zero, llm.TokenUsage{}, err
	}
	usage := resp.Usage.Normalize()

	out, err := decode[T](schema, resp.Content)
	if err != nil {
		return zero, usage, err
	}
	return out, usage, nil
}

// Decode validates and decodes a raw model response into T, exactly as
// Generate does after the call.
func Decode[T any](content string) (T, error) {
	var zero T
	schema, err := schemaFor[T]()
	if err != nil {
		return zero, err
	}
	return decode[T](schema, content)
}

func decode[T any](schema *typeSchema, content string) (T, error) {
	var zero T
	fail := func(err error) (T, error) {
		return zero, &SchemaValidationError{Type: schema.name, Raw: content, Err: err}
	}

	text, ok := ExtractJSON(content)
	if !ok {
		return fail(&fgerrors.JSONParseError{Input: truncate(content), Message: "no JSON object in response"})
	}

	var instance any
	if err := json.Unmarshal([]byte(text), &instance); err != nil {
		return fail(&fgerrors.JSONParseError{Input: truncate(text), Message: err.Error()})
	}
	if err := schema.resolved.Validate(instance); err != nil {
		return fail(&fgerrors.ValidationError{Message: err.Error()})
	}

	var out T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return fail(&fgerrors.JSONParseError{Input: truncate(text), Message: err.Error()})
	}
	if v, ok := any(out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fail(&fgerrors.ValidationError{Message: err.Error()})
		}
	}
	return out, nil
}

// Schema returns the JSON Schema sent for T.
func Schema[T any]() (json.RawMessage, error) {
	s, err := schemaFor[T]()
	if err != nil {
		return nil, err
	}
	return s.raw, nil
}

type typeSchema struct {
	name     string
	raw      json.RawMessage
	resolved *jsonschema.Resolved
}

var schemas sync.Map // reflect.Type -> *typeSchema

func schemaFor[T any]() (*typeSchema, error) {
	typ := reflect.TypeFor[T]()
	if cached, ok := schemas.Load(typ); ok {
		return cached.(*typeSchema), nil
	}

	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("derive schema for %s: %w", typ, err)
	}
	allowExtra(s)

	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema for %s: %w", typ, err)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", typ, err)
	}

	name := typ.Name()
	if name == "" {
		name = "response"
	}
	entry := &typeSchema{name: name, raw: raw, resolved: resolved}
	actual, _ := schemas.LoadOrStore(typ, entry)
	return actual.(*typeSchema), nil
}

// allowExtra lifts the closed-object constraint so that models may add
// fields the document does not know. Required fields and types still apply.
func allowExtra(s *jsonschema.Schema) {
	if s == nil {
		return
	}
	s.AdditionalProperties = nil
	for _, p := range s.Properties {
		allowExtra(p)
	}
	for _, d := range s.Defs {
		allowExtra(d)
	}
	allowExtra(s.Items)
	for _, sub := range s.AnyOf {
		allowExtra(sub)
	}
	for _, sub := range s.OneOf {
		allowExtra(sub)
	}
}

func withSchema(system string, schema json.RawMessage) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(system))
	b.WriteString("\n\nRespond with a single JSON object, and nothing else, that conforms to this JSON Schema:\n")
	b.Write(schema)
	return b.String()
}

func truncate(s string) string {
	const limit = 512
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
