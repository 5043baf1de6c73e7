// Package errors classifies failures from model providers and retries the
// ones that are worth retrying.
//
// Every error reaching the pipeline falls into one category:
//   - Transient: rate limits, timeouts, 5xx responses. Retried with backoff.
//   - Permanent: bad credentials, unknown models, cancelled runs. Never retried.
//   - Escalatable: the model answered but the answer is unusable (bad JSON,
//     schema violations). Retrying the same call rarely helps.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	CategoryPermanent

	// CategoryEscalatable indicates the output was unusable.
	CategoryEscalatable
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryEscalatable:
		return "escalatable"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Attempts is the number of calls that were made.
	Attempts int

	// Context describes what operation was being attempted.
	Context string
}

func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Attempts)
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, op string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  op,
	}
}

// Transient creates a transient error.
func Transient(err error, op string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, op)
}

// Permanent creates a permanent error.
func Permanent(err error, op string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, op)
}

// Escalatable creates an escalatable error.
func Escalatable(err error, op string) *CategorizedError {
	return NewCategorized(err, CategoryEscalatable, op)
}

// Categorize determines how an error should be handled.
// Unknown errors are permanent.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	// A cancelled run must stop; a per-call deadline is worth another try.
	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return categorizeStatus(httpErr.StatusCode)
	}

	var jsonErr *JSONParseError
	if errors.As(err, &jsonErr) {
		return CategoryEscalatable
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return CategoryEscalatable
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return CategoryTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransient
	}

	return CategoryPermanent
}

func categorizeStatus(code int) Category {
	switch {
	case code == 408, code == 429:
		return CategoryTransient
	case code >= 500:
		return CategoryTransient
	case code == 400, code == 422:
		return CategoryEscalatable
	default:
		return CategoryPermanent
	}
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsEscalatable reports whether the model produced unusable output.
func IsEscalatable(err error) bool {
	return Categorize(err) == CategoryEscalatable
}
