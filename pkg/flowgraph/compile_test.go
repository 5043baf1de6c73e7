package flowgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Valid(t *testing.T) {
	cg, err := reviewGraph(2, 3).Compile()
	require.NoError(t, err)

	assert.Equal(t, "write", cg.EntryPoint())
	assert.Equal(t, []string{"review", "revise", "write"}, cg.NodeIDs())
	assert.True(t, cg.HasNode("revise"))
	assert.False(t, cg.HasNode(END))
	assert.True(t, cg.IsConditional("review"))
	assert.False(t, cg.IsConditional("write"))
	assert.Equal(t, []string{"review"}, cg.Successors("write"))
	assert.ElementsMatch(t, []string{"write", "revise"}, cg.Predecessors("review"))
	assert.Nil(t, cg.Successors(END))
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Graph[Draft]
		want  error
	}{
		{
			name: "no entry",
			build: func() *Graph[Draft] {
				return NewGraph[Draft]().AddNode("a", visit("a")).AddEdge("a", END)
			},
			want: ErrNoEntryPoint,
		},
		{
			name: "entry not found",
			build: func() *Graph[Draft] {
				return NewGraph[Draft]().AddNode("a", visit("a")).AddEdge("a", END).SetEntry("b")
			},
			want: ErrEntryNotFound,
		},
		{
			name: "edge to unknown node",
			build: func() *Graph[Draft] {
				return NewGraph[Draft]().AddNode("a", visit("a")).AddEdge("a", "ghost").SetEntry("a")
			},
			want: ErrNodeNotFound,
		},
		{
			name: "edge from unknown node",
			build: func() *Graph[Draft] {
				return NewGraph[Draft]().AddNode("a", visit("a")).AddEdge("a", END).
					AddEdge("ghost", END).SetEntry("a")
			},
			want: ErrNodeNotFound,
		},
		{
			name: "branch to unknown node",
			build: func() *Graph[Draft] {
				g := NewGraph[Draft]().AddNode("review", visit("review")).SetEntry("review")
				return AddBranch(g, "review", decide(1), map[verdict]string{
					accepted: END, needsWork: "ghost",
				})
			},
			want: ErrNodeNotFound,
		},
		{
			name: "cycle without exit",
			build: func() *Graph[Draft] {
				return NewGraph[Draft]().
					AddNode("a", visit("a")).AddNode("b", visit("b")).
					AddEdge("a", "b").AddEdge("b", "a").SetEntry("a")
			},
			want: ErrNoPathToEnd,
		},
		{
			name: "branch cycle without exit",
			build: func() *Graph[Draft] {
				g := NewGraph[Draft]().
					AddNode("review", visit("review")).AddNode("revise", visit("revise")).
					AddEdge("revise", "review").SetEntry("review")
				return AddBranch(g, "review", decide(1), map[verdict]string{
					needsWork: "revise", givenUp: "revise",
				})
			},
			want: ErrNoPathToEnd,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cg, err := tt.build().Compile()
			assert.Nil(t, cg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompile_StartBranch(t *testing.T) {
	g := NewGraph[Draft]().
		AddNode("write", visit("write")).
		AddNode("sketch", visit("sketch")).
		AddEdge("write", END).
		AddEdge("sketch", END)
	AddBranch(g, START, func(_ Context, d Draft) bool { return d.Text == "" }, map[bool]string{
		true:  "write",
		false: "sketch",
	})

	cg, err := g.Compile()
	require.NoError(t, err)
	assert.Empty(t, cg.EntryPoint())
}

func TestCompile_StartBranchTargetWithoutExit(t *testing.T) {
	g := NewGraph[Draft]().
		AddNode("write", visit("write")).
		AddNode("loop", visit("loop")).
		AddEdge("write", END).
		AddEdge("loop", "loop")
	AddBranch(g, START, func(_ Context, d Draft) bool { return true }, map[bool]string{
		true:  "write",
		false: "loop",
	})

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrNoPathToEnd)
	assert.ErrorContains(t, err, "loop")
}

func TestCompile_PlainRouterAssumedToExit(t *testing.T) {
	g := NewGraph[Draft]().
		AddNode("a", visit("a")).
		AddConditionalEdge("a", func(Context, Draft) string { return END }).
		SetEntry("a")

	_, err := g.Compile()
	assert.NoError(t, err)
}

func TestCompile_CompiledGraphIsIsolated(t *testing.T) {
	g := NewGraph[Draft]().AddNode("a", visit("a")).AddEdge("a", END).SetEntry("a")
	cg := mustCompile(g)

	g.AddNode("b", visit("b"))
	assert.False(t, cg.HasNode("b"))
}
