package flowgraph

import (
	"context"
	"fmt"
)

// Draft is the state used across engine tests: a document that is
// written, reviewed and revised until approved or out of attempts.
type Draft struct {
	Text      string   `json:"text"`
	Revisions int      `json:"revisions"`
	Approved  bool     `json:"approved"`
	Visited   []string `json:"visited"`
	Secret    string   `json:"-"`
}

type verdict int

const (
	accepted verdict = iota
	needsWork
	givenUp
)

func testCtx() Context {
	return NewContext(context.Background())
}

// visit returns a node that records its name in Visited.
func visit(name string) NodeFunc[Draft] {
	return func(_ Context, d Draft) (Draft, error) {
		d.Visited = append(d.Visited, name)
		return d, nil
	}
}

// revise records a revision and approves once Revisions reaches approveAt.
func revise(approveAt int) NodeFunc[Draft] {
	return func(_ Context, d Draft) (Draft, error) {
		d.Visited = append(d.Visited, "revise")
		d.Revisions++
		d.Text = fmt.Sprintf("draft v%d", d.Revisions+1)
		d.Approved = d.Revisions >= approveAt
		return d, nil
	}
}

// decide approves, asks for another revision, or gives up after limit.
func decide(limit int) func(Context, Draft) verdict {
	return func(_ Context, d Draft) verdict {
		switch {
		case d.Approved:
			return accepted
		case d.Revisions >= limit:
			return givenUp
		default:
			return needsWork
		}
	}
}

// reviewGraph builds write -> review -(needsWork)-> revise -> review.
func reviewGraph(approveAt, limit int) *Graph[Draft] {
	g := NewGraph[Draft]().
		AddNode("write", visit("write")).
		AddNode("review", visit("review")).
		AddNode("revise", revise(approveAt)).
		AddEdge("write", "review").
		AddEdge("revise", "review").
		SetEntry("write")

	return AddBranch(g, "review", decide(limit), map[verdict]string{
		accepted:  END,
		needsWork: "revise",
		givenUp:   END,
	})
}

func mustCompile[S any](g *Graph[S]) *CompiledGraph[S] {
	cg, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return cg
}
