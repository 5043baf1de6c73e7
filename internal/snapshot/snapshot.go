// Package snapshot persists finished pipeline states under a project name.
package snapshot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/randalmurphal/archflow/internal/pipeline"
)

var (
	// ErrNotFound is returned by Load for an unknown snapshot.
	ErrNotFound = errors.New("snapshot not found")

	// ErrInvalidName is returned for names that are not plain snapshot names.
	ErrInvalidName = errors.New("invalid snapshot name")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("snapshot store closed")
)

// Store saves and restores pipeline states.
type Store interface {
	// Save stores s under a name derived from project and returns it.
	Save(ctx context.Context, project string, s pipeline.State) (string, error)
	Load(ctx context.Context, name string) (pipeline.State, error)
	// List returns snapshot names, newest first.
	List(ctx context.Context) ([]string, error)
	// Delete reports whether a snapshot was removed.
	Delete(ctx context.Context, name string) (bool, error)
	Close() error
}

// Metrics summarizes the spend recorded in a snapshot.
type Metrics struct {
	TotalTokens int     `json:"total_tokens"`
	Cost        float64 `json:"cost"`
}

// record is the persisted form of a snapshot.
type record struct {
	Project   string         `json:"project"`
	Timestamp int64          `json:"timestamp"`
	Metrics   Metrics        `json:"metrics"`
	State     pipeline.State `json:"state"`
}

func newRecord(project string, s pipeline.State, now time.Time) record {
	return record{
		Project:   project,
		Timestamp: now.Unix(),
		Metrics:   Metrics{TotalTokens: s.TotalTokens, Cost: s.Cost()},
		State:     s,
	}
}

// SafeName keeps letters, digits, spaces, '-' and '_' of project and trims
// the result. An empty result becomes "snapshot".
func SafeName(project string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			return r
		}
		return -1
	}, project)
	name = strings.TrimSpace(name)
	if name == "" {
		return "snapshot"
	}
	return name
}

func baseName(project string, unix int64) string {
	return SafeName(project) + "_" + strconv.FormatInt(unix, 10)
}

// Clock returns the current time. Stores take one for deterministic names.
type Clock func() time.Time

// Option configures a store.
type Option func(*options)

type options struct {
	now Clock
}

// WithClock replaces time.Now.
func WithClock(now Clock) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
