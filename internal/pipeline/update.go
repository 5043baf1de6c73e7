package pipeline

import (
	"time"

	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
)

// Update is the output of one node. The set of variants is closed.
type Update interface {
	delta() Delta
	apply(s *State)
}

// Delta is carried by every update: the tokens the node spent and the log
// lines it wrote.
type Delta struct {
	Usage llm.TokenUsage
	Logs  []LogEntry
}

func (d Delta) delta() Delta { return d }

func newDelta(u llm.TokenUsage, role Role, message string) Delta {
	return Delta{
		Usage: u,
		Logs:  []LogEntry{{Role: role, Message: message, Timestamp: time.Now().UTC()}},
	}
}

// ManagerUpdate sets the first HLD.
type ManagerUpdate struct {
	Delta
	HLD *design.HighLevelDesign
}

func (u ManagerUpdate) apply(s *State) { s.HLD = u.HLD }

// SecurityUpdate replaces the HLD's security section. The HLD is copied,
// so earlier states keep the old section.
type SecurityUpdate struct {
	Delta
	Security design.SecurityCompliance
}

func (u SecurityUpdate) apply(s *State) { s.HLD = s.HLD.WithSecurity(u.Security) }

// TeamLeadUpdate sets the LLD.
type TeamLeadUpdate struct {
	Delta
	LLD *design.LowLevelDesign
}

func (u TeamLeadUpdate) apply(s *State) { s.LLD = u.LLD }

// JudgeUpdate sets the verdict and counts the evaluation.
type JudgeUpdate struct {
	Delta
	Verdict *design.Verdict
}

func (u JudgeUpdate) apply(s *State) {
	s.Verdict = u.Verdict
	s.RetryCount++
}

// RefinerUpdate replaces both documents.
type RefinerUpdate struct {
	Delta
	HLD *design.HighLevelDesign
	LLD *design.LowLevelDesign
}

func (u RefinerUpdate) apply(s *State) {
	s.HLD = u.HLD
	s.LLD = u.LLD
}

// VisualsUpdate sets the diagrams and counts the pass.
type VisualsUpdate struct {
	Delta
	Diagrams *design.DiagramArtifacts
}

func (u VisualsUpdate) apply(s *State) {
	s.Diagrams = u.Diagrams
	s.DiagramPasses++
}

// DiagramReviewUpdate sets the diagram review.
type DiagramReviewUpdate struct {
	Delta
	Review *design.DiagramReview
}

func (u DiagramReviewUpdate) apply(s *State) { s.DiagramReview = u.Review }

// ScaffoldUpdate sets the scaffold.
type ScaffoldUpdate struct {
	Delta
	Scaffold *design.ScaffoldArtifacts
}

func (u ScaffoldUpdate) apply(s *State) { s.Scaffold = u.Scaffold }

// Apply returns s with u merged in: the variant's fields are overwritten,
// usage is added to the counters and logs are appended. The returned
// state never shares a log backing array with s.
func (s State) Apply(u Update) State {
	if u == nil {
		return s
	}
	u.apply(&s)

	d := u.delta()
	used := d.Usage.Normalize()
	s.PromptTokens += used.PromptTokens
	s.CompletionTokens += used.CompletionTokens
	s.TotalTokens += used.TotalTokens

	logs := make([]LogEntry, 0, len(s.Logs)+len(d.Logs))
	logs = append(logs, s.Logs...)
	s.Logs = append(logs, d.Logs...)
	return s
}
