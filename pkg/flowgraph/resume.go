package flowgraph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/archflow/pkg/flowgraph/checkpoint"
)

// resumeConfig holds configuration for Resume.
type resumeConfig struct {
	stateOverride func(any) any
	validateState func(any) error
	replayNode    bool
	runOpts       []RunOption
}

// ResumeOption configures Resume.
type ResumeOption func(*resumeConfig)

// WithStateOverride modifies the restored state before execution continues.
// fn receives and must return a value of the graph's state type; any other
// return value is ignored. Use it to re-inject values that are not
// serialized, such as credentials.
func WithStateOverride(fn func(any) any) ResumeOption {
	return func(c *resumeConfig) {
		c.stateOverride = fn
	}
}

// WithStateValidation rejects a restored state before execution continues.
func WithStateValidation(fn func(any) error) ResumeOption {
	return func(c *resumeConfig) {
		c.validateState = fn
	}
}

// WithReplay re-executes the checkpointed node instead of its successor.
func WithReplay() ResumeOption {
	return func(c *resumeConfig) {
		c.replayNode = true
	}
}

// WithRunOptions applies run options (logging, metrics, tracing) to the
// resumed execution. Checkpointing and run ID are always set by Resume.
func WithRunOptions(opts ...RunOption) ResumeOption {
	return func(c *resumeConfig) {
		c.runOpts = append(c.runOpts, opts...)
	}
}

// Resume continues execution from the latest checkpoint of a run.
// Checkpoints keep being written to store as the run progresses.
//
// Example:
//
//	// Previous run crashed after "review"
//	result, err := compiled.Resume(ctx, store, "run-123")
func (cg *CompiledGraph[S]) Resume(ctx Context, store checkpoint.Store, runID string, opts ...ResumeOption) (S, error) {
	var zero S
	if ctx == nil {
		return zero, ErrNilContext
	}

	cfg := resumeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	cp, err := checkpoint.Latest(store, runID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return zero, fmt.Errorf("%w: %s", ErrNoCheckpoints, runID)
	}
	if err != nil {
		return zero, fmt.Errorf("load checkpoint: %w", err)
	}

	if cp.Version != checkpoint.Version {
		return zero, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if cfg.stateOverride != nil {
		if typed, ok := cfg.stateOverride(state).(S); ok {
			state = typed
		}
	}

	if cfg.validateState != nil {
		if err := cfg.validateState(state); err != nil {
			return state, fmt.Errorf("state validation failed: %w", err)
		}
	}

	startNode := cp.NextNode
	if cfg.replayNode {
		startNode = cp.NodeID
	}
	if startNode == END {
		return state, nil
	}
	if !cg.HasNode(startNode) {
		return zero, fmt.Errorf("%w: %s", ErrInvalidResumeNode, startNode)
	}

	runCfg := defaultRunConfig()
	for _, opt := range cfg.runOpts {
		opt(&runCfg)
	}
	runCfg.checkpointStore = store
	runCfg.runID = runID
	runCfg.sequence = cp.Sequence

	return cg.run(ctx, state, startNode, &runCfg, nil)
}
