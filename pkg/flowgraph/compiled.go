package flowgraph

import (
	"maps"
	"slices"
)

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is thread-safe and can be used concurrently for multiple
// Run() and Stream() calls. The graph structure cannot be modified after
// compilation.
type CompiledGraph[S any] struct {
	nodes            map[string]NodeFunc[S]
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]
	branchTargets    map[string][]string
	entryPoint       string
	entryRouter      RouterFunc[S]

	predecessors map[string][]string
}

// EntryPoint returns the static entry node ID.
// Empty when the first node is chosen by a START branch.
func (cg *CompiledGraph[S]) EntryPoint() string {
	return cg.entryPoint
}

// NodeIDs returns all node identifiers in the graph, sorted.
func (cg *CompiledGraph[S]) NodeIDs() []string {
	return slices.Sorted(maps.Keys(cg.nodes))
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph[S]) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successors returns the node IDs that can follow the given node.
// For typed branches this is the declared target set; for plain routers
// it is nil because the targets are only known at runtime.
func (cg *CompiledGraph[S]) Successors(id string) []string {
	if id == END {
		return nil
	}
	if _, conditional := cg.conditionalEdges[id]; conditional {
		return cg.branchTargets[id]
	}
	return cg.edges[id]
}

// Predecessors returns the node IDs that have simple edges to the given node.
func (cg *CompiledGraph[S]) Predecessors(id string) []string {
	return cg.predecessors[id]
}

// IsConditional returns true if the node has a conditional edge.
func (cg *CompiledGraph[S]) IsConditional(id string) bool {
	_, exists := cg.conditionalEdges[id]
	return exists
}
