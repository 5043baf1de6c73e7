package flowgraph

import (
	"maps"
	"slices"
)

// AddBranch adds a conditional edge whose decision is a typed outcome
// rather than a node ID. routes maps every outcome to a node ID or END.
//
// Unlike AddConditionalEdge, the targets of a branch are known when the
// graph is built, so Compile rejects unknown targets and uses them for
// reachability analysis. An outcome missing from routes fails at runtime
// with a RouterError wrapping ErrInvalidRouterResult.
//
// Use START as from to select the first node from the initial state.
//
// Example:
//
//	type Outcome int
//	const (Approved Outcome = iota; Rejected)
//
//	flowgraph.AddBranch(g, "review", decide, map[Outcome]string{
//	    Approved: flowgraph.END,
//	    Rejected: "revise",
//	})
func AddBranch[S any, O comparable](g *Graph[S], from string, decide func(ctx Context, state S) O, routes map[O]string) *Graph[S] {
	if decide == nil {
		panic("flowgraph: branch decision function cannot be nil")
	}
	if len(routes) == 0 {
		panic("flowgraph: branch must declare at least one route")
	}

	table := maps.Clone(routes)
	targets := slices.Sorted(maps.Values(table))
	targets = slices.Compact(targets)

	router := func(ctx Context, state S) string {
		return table[decide(ctx, state)]
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if from == START {
		g.entryRouter = router
	} else {
		g.conditionalEdges[from] = router
	}
	g.branchTargets[from] = targets
	return g
}
