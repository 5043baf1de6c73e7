package mcpserver

import (
	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/pipeline"
)

// GenerateInput is the input of generate_architecture.
type GenerateInput struct {
	Request      string `json:"request,omitempty" jsonschema:"Product or system description to design. Required for the architecture task"`
	Task         string `json:"task,omitempty" jsonschema:"architecture (default), diagrams or code. diagrams and code need from_snapshot"`
	Provider     string `json:"provider,omitempty" jsonschema:"LLM provider: openai, gemini, claude, ollama or claude-cli (default from config)"`
	Feedback     string `json:"feedback,omitempty" jsonschema:"Reviewer feedback for the manager to address"`
	FromSnapshot string `json:"from_snapshot,omitempty" jsonschema:"Snapshot to continue from, as returned by list_snapshots"`
	Save         string `json:"save,omitempty" jsonschema:"Project name to save the result under"`
}

// GenerateOutput summarizes a finished run.
type GenerateOutput struct {
	RunID       string                    `json:"run_id"`
	Task        string                    `json:"task"`
	Approved    bool                      `json:"approved"`
	Evaluations int                       `json:"evaluations"`
	Verdict     string                    `json:"verdict,omitempty"`
	HLD         *design.HighLevelDesign   `json:"hld,omitempty"`
	LLD         *design.LowLevelDesign    `json:"lld,omitempty"`
	Diagrams    []design.Diagram          `json:"diagrams,omitempty"`
	Scaffold    *design.ScaffoldArtifacts `json:"scaffold,omitempty"`
	Logs        []string                  `json:"logs,omitempty"`
	TotalTokens int                       `json:"total_tokens"`
	Cost        float64                   `json:"cost_usd"`
	Snapshot    string                    `json:"snapshot,omitempty"`
}

// ListSnapshotsInput is the (empty) input of list_snapshots.
type ListSnapshotsInput struct{}

// ListSnapshotsOutput lists snapshot names, newest first.
type ListSnapshotsOutput struct {
	Snapshots []string `json:"snapshots"`
}

// SnapshotInput names one snapshot.
type SnapshotInput struct {
	Name string `json:"name" jsonschema:"Snapshot name as returned by list_snapshots"`
}

// LoadSnapshotOutput is a stored run rendered for reading.
type LoadSnapshotOutput struct {
	Name        string  `json:"name"`
	Task        string  `json:"task"`
	Request     string  `json:"request,omitempty"`
	Approved    bool    `json:"approved"`
	Evaluations int     `json:"evaluations"`
	TotalTokens int     `json:"total_tokens"`
	Cost        float64 `json:"cost_usd"`
	Markdown    string  `json:"markdown" jsonschema:"HLD, LLD, verdict and diagrams as a markdown document"`
}

// DeleteSnapshotOutput reports whether a snapshot was removed.
type DeleteSnapshotOutput struct {
	Deleted bool `json:"deleted"`
}

// EstimateInput is the input of estimate_cost.
type EstimateInput struct {
	Request  string `json:"request" jsonschema:"Product or system description to estimate"`
	Provider string `json:"provider,omitempty" jsonschema:"LLM provider (default from config)"`
}

func logLines(logs []pipeline.LogEntry) []string {
	out := make([]string, 0, len(logs))
	for _, l := range logs {
		out = append(out, string(l.Role)+": "+l.Message)
	}
	return out
}
