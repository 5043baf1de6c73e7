package pipeline

import (
	"fmt"
	"time"

	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/provider"
	"github.com/randalmurphal/archflow/internal/usage"
	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
)

// Task selects the entry node of a run.
type Task string

const (
	TaskArchitecture Task = "architecture"
	TaskDiagrams     Task = "diagrams"
	TaskCode         Task = "code"
)

// Tasks lists every task.
var Tasks = []Task{TaskArchitecture, TaskDiagrams, TaskCode}

// ParseTask parses a task name.
func ParseTask(name string) (Task, error) {
	t := Task(name)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	return t, nil
}

// Valid reports whether t is a known task.
func (t Task) Valid() bool {
	switch t {
	case TaskArchitecture, TaskDiagrams, TaskCode:
		return true
	}
	return false
}

// Role names the agent that wrote a log entry.
type Role string

const (
	RoleManager          Role = "Manager"
	RoleSecurity         Role = "Security Specialist"
	RoleTeamLead         Role = "Team Lead"
	RoleJudge            Role = "Judge"
	RoleRefiner          Role = "Refiner"
	RoleVisuals          Role = "Visual Architect"
	RoleDiagramValidator Role = "Diagram Validator"
	RoleScaffold         Role = "Scaffolder"
)

// LogEntry is one line of the run log.
type LogEntry struct {
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the whole pipeline state. Nodes never modify it in place; they
// return an Update that Apply merges into a copy.
type State struct {
	Task        Task            `json:"task"`
	UserRequest string          `json:"user_request"`
	Provider    provider.Config `json:"provider"`
	Feedback    string          `json:"feedback,omitempty"`

	HLD           *design.HighLevelDesign   `json:"hld,omitempty"`
	LLD           *design.LowLevelDesign    `json:"lld,omitempty"`
	Verdict       *design.Verdict           `json:"verdict,omitempty"`
	Diagrams      *design.DiagramArtifacts  `json:"diagrams,omitempty"`
	DiagramReview *design.DiagramReview     `json:"diagram_review,omitempty"`
	Scaffold      *design.ScaffoldArtifacts `json:"scaffold,omitempty"`

	// RetryCount is the number of judge evaluations so far.
	RetryCount int `json:"retry_count"`
	// DiagramPasses is the number of visuals runs in the current run.
	DiagramPasses int `json:"diagram_passes"`

	TotalTokens      int `json:"total_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	Logs []LogEntry `json:"logs"`
}

// NewState returns the initial state for a task.
func NewState(task Task, request string, cfg provider.Config) State {
	return State{Task: task, UserRequest: request, Provider: cfg}
}

// Usage returns the token counters.
func (s State) Usage() llm.TokenUsage {
	return llm.TokenUsage{
		PromptTokens:     s.PromptTokens,
		CompletionTokens: s.CompletionTokens,
		TotalTokens:      s.TotalTokens,
	}
}

// Cost is the estimated spend in US dollars at the provider's rate.
func (s State) Cost() float64 {
	return usage.Cost(s.Provider.Name, s.TotalTokens)
}

// Approved reports whether the latest verdict accepted the design.
func (s State) Approved() bool {
	return s.Verdict != nil && s.Verdict.IsValid
}

// Restart turns a stored state into the initial state of a new run of
// task. The refinement budget and diagram passes start over, and the
// artifacts the task produces are cleared together with everything
// derived from them. Input documents, token counters and logs are kept.
func (s State) Restart(task Task, cfg provider.Config) State {
	s.Task = task
	s.Provider = cfg
	s.Feedback = ""
	s.RetryCount = 0
	s.DiagramPasses = 0

	switch task {
	case TaskArchitecture:
		s.Verdict = nil
		s.Diagrams = nil
		s.DiagramReview = nil
		s.Scaffold = nil
	case TaskDiagrams:
		s.Diagrams = nil
		s.DiagramReview = nil
	case TaskCode:
		s.Scaffold = nil
	}
	return s
}
