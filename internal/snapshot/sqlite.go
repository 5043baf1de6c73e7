package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/archflow/internal/pipeline"
)

// SQLiteStore keeps snapshots in one SQLite table. Names follow the file
// store's pattern without the extension.
type SQLiteStore struct {
	db   *sql.DB
	opts options

	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates the database at path. Use ":memory:"
// for a throwaway store.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			name         TEXT    PRIMARY KEY,
			project      TEXT    NOT NULL,
			created_at   INTEGER NOT NULL,
			total_tokens INTEGER NOT NULL,
			cost         REAL    NOT NULL,
			data         BLOB    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &SQLiteStore{db: db, opts: buildOptions(opts)}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, project string, st pipeline.State) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	rec := newRecord(project, st, s.opts.now())
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	for unix := rec.Timestamp; ; unix++ {
		name := baseName(project, unix)
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO snapshots (name, project, created_at, total_tokens, cost, data)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO NOTHING
		`, name, project, unix, rec.Metrics.TotalTokens, rec.Metrics.Cost, data)
		if err != nil {
			return "", fmt.Errorf("save snapshot: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return name, nil
		}
	}
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, name string) (pipeline.State, error) {
	rec, err := s.read(ctx, name)
	if err != nil {
		return pipeline.State{}, err
	}
	return rec.State, nil
}

// Metrics returns the metrics recorded with a snapshot.
func (s *SQLiteStore) Metrics(ctx context.Context, name string) (Metrics, error) {
	rec, err := s.read(ctx, name)
	if err != nil {
		return Metrics{}, err
	}
	return rec.Metrics, nil
}

func (s *SQLiteStore) read(ctx context.Context, name string) (record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return record{}, ErrClosed
	}
	if strings.TrimSpace(name) == "" {
		return record{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return record{}, fmt.Errorf("load snapshot: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return rec, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM snapshots ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan snapshot name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return names, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete snapshot: %w", err)
	}
	return n > 0, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
