package flowgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks (in order):
//  1. An entry point or START branch must be set
//  2. The entry point must reference an existing node
//  3. All edge sources must reference existing nodes
//  4. All edge and branch targets must reference existing nodes or END
//  5. Every possible start node must have a path to END
//
// Unreachable nodes (not reachable from entry) are logged as warnings
// but do not cause compilation to fail.
func (g *Graph[S]) Compile() (*CompiledGraph[S], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.entryPoint == "" && g.entryRouter == nil {
		errs = append(errs, ErrNoEntryPoint)
	} else if g.entryPoint != "" {
		if _, exists := g.nodes[g.entryPoint]; !exists {
			errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
		}
	}

	for from, targets := range g.edges {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		for _, to := range targets {
			if !g.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, to))
			}
		}
	}

	for from := range g.conditionalEdges {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: conditional edge source '%s' does not exist", ErrNodeNotFound, from))
		}
	}

	for from, targets := range g.branchTargets {
		for _, to := range targets {
			if to == "" || !g.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: branch from '%s' targets '%s'", ErrNodeNotFound, from, to))
			}
		}
	}

	if len(errs) == 0 {
		canReachEnd := g.nodesReachingEnd()
		for _, start := range g.startNodes() {
			if !canReachEnd[start] {
				errs = append(errs, fmt.Errorf("%w: %s", ErrNoPathToEnd, start))
			}
		}
		g.warnUnreachableNodes()
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildCompiledGraph(), nil
}

// isTarget reports whether id is a valid edge target.
func (g *Graph[S]) isTarget(id string) bool {
	if id == END {
		return true
	}
	_, exists := g.nodes[id]
	return exists
}

// startNodes returns every node that can run first.
// An untyped entry router may pick any node.
func (g *Graph[S]) startNodes() []string {
	if g.entryPoint != "" && g.entryRouter == nil {
		return []string{g.entryPoint}
	}
	if targets, ok := g.branchTargets[START]; ok {
		return slices.DeleteFunc(slices.Clone(targets), func(id string) bool { return id == END })
	}
	return slices.Sorted(maps.Keys(g.nodes))
}

// successorsOf returns the possible next nodes of id.
// The second result is false when a plain router makes the set unknowable.
func (g *Graph[S]) successorsOf(id string) ([]string, bool) {
	if _, conditional := g.conditionalEdges[id]; conditional {
		targets, typed := g.branchTargets[id]
		return targets, typed
	}
	return g.edges[id], true
}

// nodesReachingEnd returns the set of nodes with a path to END.
// Nodes with an untyped router are assumed to reach END.
func (g *Graph[S]) nodesReachingEnd() map[string]bool {
	canReachEnd := map[string]bool{END: true}

	changed := true
	for changed {
		changed = false
		for id := range g.nodes {
			if canReachEnd[id] {
				continue
			}
			targets, known := g.successorsOf(id)
			if !known {
				canReachEnd[id] = true
				changed = true
				continue
			}
			for _, to := range targets {
				if canReachEnd[to] {
					canReachEnd[id] = true
					changed = true
					break
				}
			}
		}
	}

	return canReachEnd
}

// warnUnreachableNodes logs warnings for nodes not reachable from entry.
func (g *Graph[S]) warnUnreachableNodes() {
	reachable := g.findReachableNodes()

	for nodeID := range g.nodes {
		if !reachable[nodeID] {
			slog.Warn("node is unreachable from entry", "node_id", nodeID)
		}
	}
}

// findReachableNodes returns the set of nodes reachable from any start node.
func (g *Graph[S]) findReachableNodes() map[string]bool {
	reachable := make(map[string]bool)
	queue := g.startNodes()
	for _, id := range queue {
		reachable[id] = true
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		targets, known := g.successorsOf(current)
		if !known {
			// A plain router could return any node.
			targets = slices.Collect(maps.Keys(g.nodes))
		}
		for _, next := range targets {
			if next != END && !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	return reachable
}

// buildCompiledGraph creates the immutable CompiledGraph from the builder state.
func (g *Graph[S]) buildCompiledGraph() *CompiledGraph[S] {
	edges := make(map[string][]string, len(g.edges))
	predecessors := make(map[string][]string)
	for from, targets := range g.edges {
		edges[from] = slices.Clone(targets)
		for _, to := range targets {
			if to != END {
				predecessors[to] = append(predecessors[to], from)
			}
		}
	}

	branches := make(map[string][]string, len(g.branchTargets))
	for from, targets := range g.branchTargets {
		branches[from] = slices.Clone(targets)
	}

	return &CompiledGraph[S]{
		nodes:            maps.Clone(g.nodes),
		edges:            edges,
		conditionalEdges: maps.Clone(g.conditionalEdges),
		branchTargets:    branches,
		entryPoint:       g.entryPoint,
		entryRouter:      g.entryRouter,
		predecessors:     predecessors,
	}
}
