// Package knowledge provides the search collaborator consulted by the
// manager agent: a full-text index over architecture notes, stored in
// SQLite FTS5.
package knowledge

import (
	"context"
	"errors"
)

// Searcher returns context relevant to query. An empty string means
// nothing matched.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string) (string, error)

// Search implements Searcher.
func (f SearcherFunc) Search(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// Nop never finds anything.
type Nop struct{}

// Search implements Searcher.
func (Nop) Search(context.Context, string) (string, error) {
	return "", nil
}

// ErrClosed is returned by a closed Store.
var ErrClosed = errors.New("knowledge store closed")
