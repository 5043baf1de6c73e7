package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DefaultResults is the number of chunks Search returns.
const DefaultResults = 4

// Extensions lists the file types IngestDir reads. PDF text is extracted
// page by page.
var Extensions = []string{".md", ".markdown", ".txt", ".rst", ".pdf"}

// Store is a full-text index of document chunks.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	closed  bool
	results int
}

// Option configures a Store.
type Option func(*Store)

// WithResults sets how many chunks Search returns.
func WithResults(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.results = n
		}
	}
}

// Open opens or creates the index at path. Use ":memory:" for tests.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS chunks USING fts5(
		source UNINDEXED,
		seq UNINDEXED,
		content,
		tokenize = 'porter unicode61'
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{db: db, results: DefaultResults}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ingest indexes text under source, replacing any earlier chunks of the
// same source. It returns the number of chunks written.
func (s *Store) Ingest(ctx context.Context, source, text string) (int, error) {
	return s.ingestAll(ctx, []document{{source: source, text: text}})
}

// IngestFile indexes one file under its path. PDFs are reduced to their
// text first.
func (s *Store) IngestFile(ctx context.Context, path string) (int, error) {
	text, err := readDocument(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return s.Ingest(ctx, filepath.ToSlash(path), text)
}

type document struct {
	source string
	text   string
}

func (s *Store) ingestAll(ctx context.Context, docs []document) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin ingest: %w", err)
	}
	defer tx.Rollback()

	total := 0
	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, doc.source); err != nil {
			return 0, fmt.Errorf("replace %s: %w", doc.source, err)
		}
		for i, chunk := range Split(doc.text, ChunkSize, ChunkOverlap) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chunks (source, seq, content) VALUES (?, ?, ?)`,
				doc.source, i, chunk); err != nil {
				return 0, fmt.Errorf("insert chunk %d of %s: %w", i, doc.source, err)
			}
			total++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ingest: %w", err)
	}
	return total, nil
}

// IngestReport summarizes an IngestDir call.
type IngestReport struct {
	Files  int
	Chunks int
}

// IngestDir indexes every file under dir with a known extension. Files
// are read concurrently; sources are recorded relative to dir.
func (s *Store) IngestDir(ctx context.Context, dir string) (IngestReport, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && slices.Contains(Extensions, strings.ToLower(filepath.Ext(path))) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return IngestReport{}, fmt.Errorf("scan %s: %w", dir, err)
	}

	docs := make([]document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := readDocument(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				rel = path
			}
			docs[i] = document{source: filepath.ToSlash(rel), text: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return IngestReport{}, err
	}

	chunks, err := s.ingestAll(ctx, docs)
	if err != nil {
		return IngestReport{}, err
	}
	return IngestReport{Files: len(docs), Chunks: chunks}, nil
}

// Hit is one search result.
type Hit struct {
	Source  string
	Content string
	Rank    float64
}

// Query returns the best matching chunks, best first.
func (s *Store) Query(ctx context.Context, query string, limit int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	match := matchExpr(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.results
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, content, rank FROM chunks
		WHERE chunks MATCH ?
		ORDER BY rank LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Source, &h.Content, &h.Rank); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}

// Search implements Searcher. Hits are formatted with their source.
func (s *Store) Search(ctx context.Context, query string) (string, error) {
	hits, err := s.Query(ctx, query, 0)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", h.Source, h.Content))
	}
	return strings.Join(parts, "\n\n"), nil
}

// Count returns the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Close releases the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// matchExpr turns free text into an FTS5 OR query of quoted terms.
// Quoting neutralizes FTS5 operators in user input.
func matchExpr(query string) string {
	var terms []string
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r == '_' || r == '-' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') || r > 127)
	}) {
		if len(w) < 2 || slices.Contains(terms, `"`+w+`"`) {
			continue
		}
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}
