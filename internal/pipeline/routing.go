package pipeline

import (
	"github.com/randalmurphal/archflow/pkg/flowgraph"
)

// Node IDs.
const (
	NodeManager          = "manager"
	NodeSecurity         = "security"
	NodeTeamLead         = "team_lead"
	NodeJudge            = "judge"
	NodeRefiner          = "refiner"
	NodeVisuals          = "visuals"
	NodeDiagramValidator = "diagram_validator"
	NodeScaffold         = "scaffold"
)

// QualityOutcome is the decision taken after the judge.
type QualityOutcome int

const (
	Approved QualityOutcome = iota
	Exhausted
	Rejected
)

func (o QualityOutcome) String() string {
	switch o {
	case Approved:
		return "approved"
	case Exhausted:
		return "exhausted"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// CheckQuality decides whether the design loop ends. A design is
// exhausted once more than maxRetries evaluations have failed to approve it.
func CheckQuality(s State, maxRetries int) QualityOutcome {
	switch {
	case s.Approved():
		return Approved
	case s.RetryCount > maxRetries:
		return Exhausted
	default:
		return Rejected
	}
}

// DiagramOutcome is the decision taken after the visual architect.
type DiagramOutcome int

const (
	Rendered DiagramOutcome = iota
	NeedsFix
	GiveUp
)

func (o DiagramOutcome) String() string {
	switch o {
	case Rendered:
		return "rendered"
	case NeedsFix:
		return "needs_fix"
	case GiveUp:
		return "give_up"
	}
	return "unknown"
}

// CheckDiagrams decides whether the visual architect gets another pass.
// The first pass is not a fix, so at most maxFixes passes follow it.
func CheckDiagrams(s State, maxFixes int) DiagramOutcome {
	if len(s.Diagrams.Failed()) == 0 {
		return Rendered
	}
	if s.DiagramPasses-1 < maxFixes {
		return NeedsFix
	}
	return GiveUp
}

// EntryNode returns the first node for a task, or "" for an unknown task.
func EntryNode(t Task) string {
	switch t {
	case TaskArchitecture:
		return NodeManager
	case TaskDiagrams:
		return NodeVisuals
	case TaskCode:
		return NodeScaffold
	}
	return ""
}

func (p *Pipeline) buildGraph() (*flowgraph.CompiledGraph[State], error) {
	g := flowgraph.NewGraph[State]().
		AddNode(NodeManager, p.manager).
		AddNode(NodeSecurity, p.security).
		AddNode(NodeTeamLead, p.teamLead).
		AddNode(NodeJudge, p.judge).
		AddNode(NodeRefiner, p.refiner).
		AddNode(NodeVisuals, p.visuals).
		AddNode(NodeDiagramValidator, p.diagramValidator).
		AddNode(NodeScaffold, p.scaffold).
		AddEdge(NodeManager, NodeSecurity).
		AddEdge(NodeSecurity, NodeTeamLead).
		AddEdge(NodeTeamLead, NodeJudge).
		AddEdge(NodeRefiner, NodeJudge).
		AddEdge(NodeDiagramValidator, flowgraph.END).
		AddEdge(NodeScaffold, flowgraph.END)

	flowgraph.AddBranch(g, flowgraph.START, func(_ flowgraph.Context, s State) Task {
		return s.Task
	}, map[Task]string{
		TaskArchitecture: EntryNode(TaskArchitecture),
		TaskDiagrams:     EntryNode(TaskDiagrams),
		TaskCode:         EntryNode(TaskCode),
	})

	approved := flowgraph.END
	if p.cfg.diagramsAfterApproval {
		approved = NodeVisuals
	}
	flowgraph.AddBranch(g, NodeJudge, func(_ flowgraph.Context, s State) QualityOutcome {
		return CheckQuality(s, p.cfg.maxRefinementRetries)
	}, map[QualityOutcome]string{
		Approved:  approved,
		Exhausted: flowgraph.END,
		Rejected:  NodeRefiner,
	})

	flowgraph.AddBranch(g, NodeVisuals, func(_ flowgraph.Context, s State) DiagramOutcome {
		return CheckDiagrams(s, p.cfg.maxDiagramFixes)
	}, map[DiagramOutcome]string{
		Rendered: NodeDiagramValidator,
		NeedsFix: NodeVisuals,
		GiveUp:   NodeDiagramValidator,
	})

	return g.Compile()
}
