// Package checkpoint provides persistent checkpoint storage for crash recovery.
//
// Stores are append-only per run: a node that executes several times (a
// review loop, for example) leaves one checkpoint per execution, and Load
// returns the newest one for that node.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists checkpoints for crash recovery.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save appends a checkpoint for a run at a specific node.
	Save(runID, nodeID string, data []byte) error

	// Load retrieves the newest checkpoint saved for (runID, nodeID).
	// Returns ErrNotFound if none exists.
	Load(runID, nodeID string) ([]byte, error)

	// List returns all checkpoints for a run, ordered by sequence.
	// Returns an empty slice (not error) if the run has no checkpoints.
	List(runID string) ([]Info, error)

	// Runs summarizes every run with at least one checkpoint,
	// most recently updated first.
	Runs() ([]RunInfo, error)

	// DeleteRun removes all checkpoints for a run.
	// Returns nil if the run has no checkpoints.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	RunID     string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// RunInfo summarizes the checkpoints of one run.
type RunInfo struct {
	RunID       string
	Checkpoints int
	LastNodeID  string
	UpdatedAt   time.Time
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrCorrupt indicates stored bytes are not a checkpoint.
	ErrCorrupt = errors.New("checkpoint corrupt")
)
