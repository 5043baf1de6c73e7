package flowgraph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Linear(t *testing.T) {
	cg := mustCompile(NewGraph[Draft]().
		AddNode("manager", visit("manager")).
		AddNode("security", visit("security")).
		AddNode("team_lead", visit("team_lead")).
		AddEdge("manager", "security").
		AddEdge("security", "team_lead").
		AddEdge("team_lead", END).
		SetEntry("manager"))

	got, err := cg.Run(testCtx(), Draft{})
	require.NoError(t, err)
	assert.Equal(t, []string{"manager", "security", "team_lead"}, got.Visited)
}

func TestRun_BranchLoop(t *testing.T) {
	tests := []struct {
		name      string
		approveAt int
		limit     int
		approved  bool
		revisions int
		visited   []string
	}{
		{
			name: "approved first time", approveAt: 0, limit: 3, approved: false, revisions: 0,
			visited: []string{"write", "review"},
		},
		{
			name: "approved after one revision", approveAt: 1, limit: 3, approved: true, revisions: 1,
			visited: []string{"write", "review", "revise", "review"},
		},
		{
			name: "gives up at limit", approveAt: 10, limit: 2, approved: false, revisions: 2,
			visited: []string{"write", "review", "revise", "review", "revise", "review"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cg := mustCompile(reviewGraph(tt.approveAt, tt.limit))
			start := Draft{Approved: tt.approveAt == 0}

			got, err := cg.Run(testCtx(), start)
			require.NoError(t, err)
			assert.Equal(t, tt.revisions, got.Revisions)
			assert.Equal(t, tt.visited, got.Visited)
			if tt.approveAt > 0 {
				assert.Equal(t, tt.approved, got.Approved)
			}
		})
	}
}

func TestRun_StartBranch(t *testing.T) {
	g := NewGraph[Draft]().
		AddNode("write", visit("write")).
		AddNode("sketch", visit("sketch")).
		AddEdge("write", END).
		AddEdge("sketch", END)
	AddBranch(g, START, func(_ Context, d Draft) bool { return d.Text == "" }, map[bool]string{
		true:  "write",
		false: "sketch",
	})
	cg := mustCompile(g)

	got, err := cg.Run(testCtx(), Draft{})
	require.NoError(t, err)
	assert.Equal(t, []string{"write"}, got.Visited)

	got, err = cg.Run(testCtx(), Draft{Text: "existing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sketch"}, got.Visited)
}

func TestRun_NodeErrorKeepsInputState(t *testing.T) {
	boom := errors.New("provider unavailable")
	cg := mustCompile(NewGraph[Draft]().
		AddNode("write", visit("write")).
		AddNode("review", func(_ Context, d Draft) (Draft, error) {
			d.Text = "partial"
			return d, boom
		}).
		AddEdge("write", "review").
		AddEdge("review", END).
		SetEntry("write"))

	got, err := cg.Run(testCtx(), Draft{Text: "original"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "review", nodeErr.NodeID)
	assert.Equal(t, "execute", nodeErr.Op)

	assert.Equal(t, "original", got.Text)
	assert.Equal(t, []string{"write"}, got.Visited)
}

func TestRun_PanicRecovered(t *testing.T) {
	cg := mustCompile(NewGraph[Draft]().
		AddNode("write", func(Context, Draft) (Draft, error) { panic("nil design") }).
		AddEdge("write", END).
		SetEntry("write"))

	got, err := cg.Run(testCtx(), Draft{Text: "kept"})

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "write", panicErr.NodeID)
	assert.Equal(t, "nil design", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	assert.Equal(t, "kept", got.Text)
}

func TestRun_CancellationBetweenNodes(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran []string
	cg := mustCompile(NewGraph[Draft]().
		AddNode("write", func(ctx Context, d Draft) (Draft, error) {
			ran = append(ran, "write")
			cancel()
			// The running node still completes.
			d.Text = "written"
			return d, nil
		}).
		AddNode("review", func(ctx Context, d Draft) (Draft, error) {
			ran = append(ran, "review")
			return d, nil
		}).
		AddEdge("write", "review").
		AddEdge("review", END).
		SetEntry("write"))

	got, err := cg.Run(NewContext(parent), Draft{})

	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "review", cancelErr.NodeID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"write"}, ran)
	assert.Equal(t, "written", got.Text)
	assert.Equal(t, "written", cancelErr.State.(Draft).Text)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	cg := mustCompile(reviewGraph(1, 3))
	_, err := cg.Run(NewContext(parent), Draft{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_MaxIterations(t *testing.T) {
	cg := mustCompile(NewGraph[Draft]().
		AddNode("spin", visit("spin")).
		AddConditionalEdge("spin", func(Context, Draft) string { return "spin" }).
		SetEntry("spin"))

	got, err := cg.Run(testCtx(), Draft{}, WithMaxIterations(5))

	var maxErr *MaxIterationsError
	require.ErrorAs(t, err, &maxErr)
	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, 5, maxErr.Max)
	assert.Equal(t, "spin", maxErr.LastNodeID)
	assert.Len(t, got.Visited, 5)
}

func TestRun_RouterErrors(t *testing.T) {
	tests := []struct {
		name   string
		router RouterFunc[Draft]
		want   error
	}{
		{"empty", func(Context, Draft) string { return "" }, ErrInvalidRouterResult},
		{"unknown", func(Context, Draft) string { return "ghost" }, ErrRouterTargetNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cg := mustCompile(NewGraph[Draft]().
				AddNode("a", visit("a")).
				AddConditionalEdge("a", tt.router).
				SetEntry("a"))

			_, err := cg.Run(testCtx(), Draft{})
			var routerErr *RouterError
			require.ErrorAs(t, err, &routerErr)
			assert.Equal(t, "a", routerErr.FromNode)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRun_BranchOutcomeWithoutRoute(t *testing.T) {
	g := NewGraph[Draft]().AddNode("review", visit("review")).SetEntry("review")
	AddBranch(g, "review", decide(1), map[verdict]string{accepted: END})
	cg := mustCompile(g)

	// Not approved and under the limit: needsWork has no route.
	_, err := cg.Run(testCtx(), Draft{})
	assert.ErrorIs(t, err, ErrInvalidRouterResult)
}

func TestRun_NilContext(t *testing.T) {
	cg := mustCompile(reviewGraph(1, 3))
	//nolint:staticcheck // nil context is the case under test
	_, err := cg.Run(nil, Draft{})
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestRun_NodeContext(t *testing.T) {
	var (
		gotRunID  string
		gotNodeID string
	)
	cg := mustCompile(NewGraph[Draft]().
		AddNode("judge", func(ctx Context, d Draft) (Draft, error) {
			gotRunID = ctx.RunID()
			gotNodeID = ctx.NodeID()
			return d, nil
		}).
		AddEdge("judge", END).
		SetEntry("judge"))

	ctx := NewContext(context.Background(), WithContextRunID("run-42"))
	_, err := cg.Run(ctx, Draft{})
	require.NoError(t, err)
	assert.Equal(t, "run-42", gotRunID)
	assert.Equal(t, "judge", gotNodeID)
}

func TestRun_ConcurrentRunsShareCompiledGraph(t *testing.T) {
	cg := mustCompile(reviewGraph(2, 5))

	var wg sync.WaitGroup
	results := make([]Draft, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cg.Run(testCtx(), Draft{})
			assert.NoError(t, err)
			results[i] = got
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 2, r.Revisions)
		assert.True(t, r.Approved)
	}
}

func TestNewContext_Defaults(t *testing.T) {
	ctx := NewContext(context.Background())
	assert.NotEmpty(t, ctx.RunID())
	assert.Empty(t, ctx.NodeID())
	assert.Equal(t, 1, ctx.Attempt())
	assert.NotNil(t, ctx.Logger())

	ctx = NewContext(context.Background(), WithAttempt(3), WithAttempt(0), WithLogger(nil))
	assert.Equal(t, 3, ctx.Attempt())
	assert.NotNil(t, ctx.Logger())
}
