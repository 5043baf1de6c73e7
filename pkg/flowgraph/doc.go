/*
Package flowgraph is the graph execution engine behind archflow.

A graph is a set of named nodes that transform a typed state S, connected
by edges. Edges are either unconditional (AddEdge), routed by a function
returning a node ID (AddConditionalEdge), or routed by a typed outcome
(AddBranch). Execution is strictly sequential: one node runs at a time and
the engine picks the next node once the current one returns.

# Building

	g := flowgraph.NewGraph[Doc]().
	    AddNode("draft", draft).
	    AddNode("review", review).
	    AddNode("revise", revise).
	    AddEdge("draft", "review").
	    AddEdge("revise", "review")

	flowgraph.AddBranch(g, "review", verdict, map[Outcome]string{
	    Approved:  flowgraph.END,
	    Rejected:  "revise",
	    Exhausted: flowgraph.END,
	})

	compiled, err := g.SetEntry("draft").Compile()

Branch targets are validated by Compile, and every start node must have a
path to END. A branch from START chooses the first node from the initial
state instead of a fixed entry.

# Running

Run blocks until END and returns the final state. Stream returns an
iterator yielding a Step after every node; both share one transition loop.

	for step, err := range compiled.Stream(ctx, doc) {
	    ...
	}

Cancellation of the context is honored between nodes. A running node is
never interrupted by the engine; a node that wants a deadline must pass
ctx to its own blocking calls.

# Errors

Node failures are wrapped in *NodeError, panics are recovered into
*PanicError, and routing mistakes produce *RouterError. Cancellation and
the iteration limit produce *CancellationError and *MaxIterationsError.
All carry enough context to attribute the failure to a node.

# Checkpoints

WithCheckpointing saves the serialized state after every node (see the
checkpoint package). Resume continues a crashed run from its latest
checkpoint.

# Observability

WithObservabilityLogger, WithMetrics and WithTracing enable slog lifecycle
logging, OpenTelemetry metrics and OpenTelemetry spans. All three are off
by default.
*/
package flowgraph
