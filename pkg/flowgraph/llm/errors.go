package llm

import (
	"errors"
	"fmt"

	fgerrors "github.com/randalmurphal/archflow/pkg/flowgraph/errors"
)

// ErrEmptyResponse indicates a provider returned no content.
var ErrEmptyResponse = errors.New("empty response")

// Error is a failed model call.
type Error struct {
	// Op is the operation that failed ("complete").
	Op string
	// Provider names the backend, when known.
	Provider string
	// Err is the underlying error.
	Err error
	// Retryable marks failures a retry may fix.
	Retryable bool
}

// NewError creates an Error.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("llm %s %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is worth retrying. An *Error marked
// retryable wins; otherwise the error category decides.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) && llmErr.Retryable {
		return true
	}
	return fgerrors.IsRetryable(err)
}
