package knowledge

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Source is a named Searcher whose results form one section of the
// combined context.
type Source struct {
	Name     string
	Searcher Searcher
}

// Combined queries several sources concurrently and joins their results
// in source order, one "=== Name ===" section per source that found
// something. A failing source is logged and contributes nothing.
type Combined struct {
	sources []Source
	logger  *slog.Logger
}

// Combine creates a Combined searcher. Sources with a nil Searcher are
// dropped.
func Combine(logger *slog.Logger, sources ...Source) *Combined {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Combined{logger: logger}
	for _, src := range sources {
		if src.Searcher != nil {
			c.sources = append(c.sources, src)
		}
	}
	return c
}

// Len returns the number of sources.
func (c *Combined) Len() int { return len(c.sources) }

// Search implements Searcher. It never returns an error.
func (c *Combined) Search(ctx context.Context, query string) (string, error) {
	results := make([]string, len(c.sources))
	var g errgroup.Group
	for i, src := range c.sources {
		g.Go(func() error {
			text, err := src.Searcher.Search(ctx, query)
			if err != nil {
				c.logger.Warn("knowledge source failed", "source", src.Name, "error", err)
				return nil
			}
			results[i] = strings.TrimSpace(text)
			return nil
		})
	}
	_ = g.Wait()

	var sections []string
	for i, text := range results {
		if text != "" {
			sections = append(sections, "=== "+c.sources[i].Name+" ===\n"+text)
		}
	}
	return strings.Join(sections, "\n\n"), nil
}
