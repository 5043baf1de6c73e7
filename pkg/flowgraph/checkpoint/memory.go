package checkpoint

import (
	"bytes"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory checkpoint store.
// Data is lost when the process exits; use it for tests and one-shot runs.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string][]entry
	closed bool
}

type entry struct {
	nodeID    string
	data      []byte
	sequence  int
	timestamp time.Time
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string][]entry)}
}

// Save implements Store.
func (m *MemoryStore) Save(runID, nodeID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	run := m.runs[runID]
	m.runs[runID] = append(run, entry{
		nodeID:    nodeID,
		data:      bytes.Clone(data),
		sequence:  len(run) + 1,
		timestamp: time.Now().UTC(),
	})
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID, nodeID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	run := m.runs[runID]
	for i := len(run) - 1; i >= 0; i-- {
		if run[i].nodeID == nodeID {
			return bytes.Clone(run[i].data), nil
		}
	}
	return nil, ErrNotFound
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	run := m.runs[runID]
	infos := make([]Info, 0, len(run))
	for _, e := range run {
		infos = append(infos, Info{
			RunID:     runID,
			NodeID:    e.nodeID,
			Sequence:  e.sequence,
			Timestamp: e.timestamp,
			Size:      int64(len(e.data)),
		})
	}
	return infos, nil
}

// Runs implements Store.
func (m *MemoryStore) Runs() ([]RunInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	runs := make([]RunInfo, 0, len(m.runs))
	for runID, run := range m.runs {
		if len(run) == 0 {
			continue
		}
		last := run[len(run)-1]
		runs = append(runs, RunInfo{
			RunID:       runID,
			Checkpoints: len(run),
			LastNodeID:  last.nodeID,
			UpdatedAt:   last.timestamp,
		})
	}
	slices.SortFunc(runs, func(a, b RunInfo) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return runs, nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.runs, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.runs = nil
	return nil
}

// Len returns the total number of checkpoints across all runs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, run := range m.runs {
		count += len(run)
	}
	return count
}
