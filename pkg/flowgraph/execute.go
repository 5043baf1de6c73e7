package flowgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/archflow/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/archflow/pkg/flowgraph/observability"
)

// Run executes the graph with the given initial state.
// Returns the final state and any error encountered.
//
// On success, returns the state after the last node executed before END.
// On error, returns the state at the point of failure.
//
// Execution flow:
//  1. Resolve the first node (static entry or START branch)
//  2. Check for cancellation
//  3. Execute the current node
//  4. Determine the next node (via simple or conditional edge)
//  5. Checkpoint, then repeat until END is reached or an error occurs
//
// Example:
//
//	ctx := flowgraph.NewContext(context.Background())
//	result, err := compiled.Run(ctx, initialState)
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption) (S, error) {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cg.run(ctx, state, "", &cfg, nil)
}

// run is the transition loop shared by Run, Stream and Resume.
// An empty startNode resolves the entry. A non-nil yield receives every
// step; returning false stops the run without error.
func (cg *CompiledGraph[S]) run(ctx Context, state S, startNode string, cfg *runConfig, yield func(Step[S]) bool) (result S, runErr error) {
	if ctx == nil {
		return state, ErrNilContext
	}
	if cfg.checkpointStore != nil && cfg.runID == "" {
		return state, ErrRunIDRequired
	}

	runID := cfg.runID
	if runID == "" {
		runID = ctx.RunID()
	}

	startTime := time.Now()
	observability.LogRunStart(cfg.logger, runID)

	var spanCtx context.Context = ctx
	if cfg.tracingEnabled {
		var runSpan trace.Span
		spanCtx, runSpan = cfg.spans.StartRunSpan(ctx, cfg.graphName, runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	var nodeCount int
	if startNode == "" {
		startNode, runErr = cg.entry(ctx, state)
	}
	if runErr == nil {
		result, nodeCount, runErr = cg.loop(spanCtx, ctx, state, startNode, cfg, yield)
		if errors.Is(runErr, errStopped) {
			runErr = nil
		}
	} else {
		result = state
	}

	duration := time.Since(startTime)
	cfg.metrics.RecordGraphRun(ctx, runErr == nil, duration)

	if runErr != nil {
		observability.LogRunError(cfg.logger, runID, runErr, float64(duration.Milliseconds()), failedNode(runErr))
	} else {
		observability.LogRunComplete(cfg.logger, runID, float64(duration.Milliseconds()), nodeCount)
	}

	return result, runErr
}

// entry resolves the first node to execute.
func (cg *CompiledGraph[S]) entry(ctx Context, state S) (string, error) {
	if cg.entryRouter == nil {
		return cg.entryPoint, nil
	}
	next := cg.entryRouter(nodeContext(ctx, nil, START), state)
	if err := cg.checkRoute(START, next); err != nil {
		return "", err
	}
	return next, nil
}

// loop executes nodes from startNode until END.
// spanCtx carries span context; fgCtx is the flowgraph Context.
func (cg *CompiledGraph[S]) loop(spanCtx context.Context, fgCtx Context, state S, startNode string, cfg *runConfig, yield func(Step[S]) bool) (S, int, error) {
	current := startNode
	iterations := 0
	prevNode := ""
	nodeCount := 0

	for current != END {
		iterations++
		if iterations > cfg.maxIterations {
			return state, nodeCount, &MaxIterationsError{
				Max:        cfg.maxIterations,
				LastNodeID: current,
				State:      state,
			}
		}

		// Nodes are never interrupted; cancellation is observed here.
		if err := fgCtx.Err(); err != nil {
			return state, nodeCount, &CancellationError{
				NodeID: current,
				State:  state,
				Cause:  err,
			}
		}

		observability.LogNodeStart(cfg.logger, current)

		nodeSpanCtx := spanCtx
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			nodeSpanCtx, nodeSpan = cfg.spans.StartNodeSpan(spanCtx, current)
		}

		nodeStart := time.Now()
		var nodeErr error
		state, nodeErr = cg.executeNode(nodeContext(fgCtx, nodeSpanCtx, current), current, state)
		nodeDuration := time.Since(nodeStart)

		cfg.metrics.RecordNodeExecution(nodeSpanCtx, current, nodeDuration, nodeErr)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(nodeSpan, nodeErr)
		}

		if nodeErr != nil {
			observability.LogNodeError(cfg.logger, current, nodeErr)
			return state, nodeCount, nodeErr
		}
		observability.LogNodeComplete(cfg.logger, current, float64(nodeDuration.Milliseconds()))
		nodeCount++

		next, err := cg.nextNode(fgCtx, state, current)
		if err != nil {
			return state, nodeCount, err
		}

		if cfg.checkpointStore != nil {
			if err := cg.saveCheckpoint(fgCtx, cfg, current, prevNode, state, next); err != nil {
				return state, nodeCount, err
			}
		}

		if yield != nil && !yield(Step[S]{NodeID: current, Next: next, State: state}) {
			return state, nodeCount, errStopped
		}

		prevNode = current
		current = next
	}

	return state, nodeCount, nil
}

// saveCheckpoint persists the state after a node executed.
// Failures are logged unless the run was configured to treat them as fatal.
func (cg *CompiledGraph[S]) saveCheckpoint(ctx Context, cfg *runConfig, nodeID, prevNodeID string, state S, nextNode string) error {
	fail := func(op string, err error) error {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{NodeID: nodeID, Op: op, Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, op, err)
		return nil
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return fail("serialize", err)
	}

	cfg.sequence++
	cp := checkpoint.New(cfg.runID, nodeID, cfg.sequence, stateBytes, nextNode).
		WithPrevNode(prevNodeID).
		WithAttempt(ctx.Attempt())

	data, err := cp.Marshal()
	if err != nil {
		return fail("marshal", err)
	}

	if err := cfg.checkpointStore.Save(cfg.runID, nodeID, data); err != nil {
		return fail("save", err)
	}

	observability.LogCheckpoint(cfg.logger, nodeID, len(data))
	cfg.metrics.RecordCheckpoint(ctx, nodeID, int64(len(data)))
	return nil
}

// executeNode executes a single node with panic recovery.
func (cg *CompiledGraph[S]) executeNode(ctx Context, nodeID string, state S) (result S, err error) {
	fn, exists := cg.nodes[nodeID]
	if !exists {
		return state, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = fn(ctx, state)
	if err != nil {
		// A failed node contributes nothing; keep the input state.
		return state, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}

	return result, nil
}

// nextNode determines the next node to execute.
// Checks conditional edges first, then simple edges.
func (cg *CompiledGraph[S]) nextNode(ctx Context, state S, current string) (string, error) {
	if router, exists := cg.conditionalEdges[current]; exists {
		next := router(nodeContext(ctx, nil, current), state)
		if err := cg.checkRoute(current, next); err != nil {
			return "", err
		}
		return next, nil
	}

	edges := cg.edges[current]
	if len(edges) == 0 {
		return "", &NodeError{
			NodeID: current,
			Op:     "routing",
			Err:    fmt.Errorf("no outgoing edge from node %s", current),
		}
	}

	// Fan-out is not supported; the first edge wins.
	return edges[0], nil
}

// checkRoute validates a router result.
func (cg *CompiledGraph[S]) checkRoute(from, next string) error {
	if next == "" {
		return &RouterError{FromNode: from, Returned: next, Err: ErrInvalidRouterResult}
	}
	if next != END && !cg.HasNode(next) {
		return &RouterError{FromNode: from, Returned: next, Err: ErrRouterTargetNotFound}
	}
	return nil
}
