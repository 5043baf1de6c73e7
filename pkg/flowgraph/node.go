package flowgraph

// END is the terminal node identifier.
// Use this as an edge target to indicate the graph should terminate.
const END = "__end__"

// START is the virtual node that precedes the entry point.
// Pass it to AddBranch to choose the first node from the initial state.
const START = "__start__"

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and current state,
// and return the updated state (or the same state) and any error.
//
// The state parameter is passed by value. Nodes should modify and return
// a new state value, not rely on pointer mutation.
//
// Example:
//
//	func draft(ctx flowgraph.Context, s Doc) (Doc, error) {
//	    s.Revision++
//	    return s, nil
//	}
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc determines the next node based on state.
// It is used for conditional edges where the next node depends on runtime state.
//
// The router should return a valid node ID or flowgraph.END.
// Returning an empty string or an unknown node ID will cause a runtime error.
type RouterFunc[S any] func(ctx Context, state S) string

// Step is the result of one node transition.
// Stream yields one Step per executed node.
type Step[S any] struct {
	// NodeID is the node that just executed.
	NodeID string
	// Next is the node scheduled after NodeID, or END.
	Next string
	// State is the state after NodeID's output was applied.
	State S
}
