package flowgraph

import "iter"

// Stream executes the graph like Run but yields a Step after every node.
// It uses the same transition loop as Run, so a streamed run visits the
// same nodes in the same order as a blocking one.
//
// If the run fails, the final pair carries the state at the point of
// failure and the error. Breaking out of the range loop stops the run
// before the next node is scheduled.
//
// Example:
//
//	for step, err := range compiled.Stream(ctx, state) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println("finished", step.NodeID)
//	}
func (cg *CompiledGraph[S]) Stream(ctx Context, state S, opts ...RunOption) iter.Seq2[Step[S], error] {
	return func(yield func(Step[S], error) bool) {
		cfg := defaultRunConfig()
		for _, opt := range opts {
			opt(&cfg)
		}

		final, err := cg.run(ctx, state, "", &cfg, func(step Step[S]) bool {
			return yield(step, nil)
		})
		if err != nil {
			yield(Step[S]{NodeID: failedNode(err), Next: END, State: final}, err)
		}
	}
}
