package report_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/design/designtest"
	"github.com/randalmurphal/archflow/internal/pipeline"
	"github.com/randalmurphal/archflow/internal/provider"
	"github.com/randalmurphal/archflow/internal/report"
	"github.com/randalmurphal/archflow/internal/usage"
)

func entry(role pipeline.Role, msg string) pipeline.LogEntry {
	return pipeline.LogEntry{Role: role, Message: msg, Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func TestPrinter_Progress(t *testing.T) {
	var buf bytes.Buffer
	p := report.NewPrinter(&buf)

	s := pipeline.State{Logs: []pipeline.LogEntry{entry(pipeline.RoleManager, "Drafted HLD")}}
	p.Progress(pipeline.Progress{Node: "manager", State: s})

	s.Logs = append(s.Logs, entry(pipeline.RoleSecurity, "Reviewed security"))
	p.Progress(pipeline.Progress{Node: "security", State: s})

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "Drafted HLD"), "earlier entries are not repeated")
	assert.Contains(t, out, "03:04:05 Manager Drafted HLD")
	assert.Contains(t, out, "Security Specialist Reviewed security")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestPrinter_Logs(t *testing.T) {
	var buf bytes.Buffer
	p := report.NewPrinter(&buf)
	s := pipeline.State{Logs: []pipeline.LogEntry{
		entry(pipeline.RoleManager, "one"),
		entry(pipeline.RoleJudge, "two"),
	}}

	p.Logs(s)
	p.Logs(s)

	assert.Equal(t, 2, strings.Count(buf.String(), "one"))
}

func TestPrinter_Summary(t *testing.T) {
	hld := designtest.HLD()
	verdict := designtest.Approved()
	s := pipeline.NewState(pipeline.TaskArchitecture, "url shortener", provider.Config{Name: provider.OpenAI})
	s.HLD = &hld
	s.Verdict = &verdict
	s.RetryCount = 2
	s.TotalTokens, s.PromptTokens, s.CompletionTokens = 500_000, 400_000, 100_000
	s.Diagrams = &design.DiagramArtifacts{Diagrams: []design.Diagram{
		{Kind: design.SystemContext, Path: "output/system_context.mmd"},
		{Kind: design.Container, RenderError: "Syntax error in Mermaid code: empty diagram"},
	}}
	s.DiagramReview = &design.DiagramReview{ValidSyntax: true, MissingElements: []string{"store"}}
	s.Scaffold = &design.ScaffoldArtifacts{
		Spec:      design.ScaffoldSpec{Files: []design.StarterFile{{Filename: "main.go"}, {Filename: "go.mod"}}},
		OutputDir: "output/generated_app",
	}

	var buf bytes.Buffer
	report.NewPrinter(&buf).Summary(s)
	out := buf.String()

	for _, want := range []string{
		"Summary",
		"architecture",
		"approved (score 9/10)",
		"Evaluations",
		"System Context",
		"output/system_context.mmd",
		"Syntax error in Mermaid code: empty diagram",
		"1 missing",
		"2 files in output/generated_app",
		"500000 (prompt 400000, completion 100000)",
		"$5.0000",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "\x1b[", "no escape codes for a non-terminal writer")
}

func TestPrinter_SummaryWithoutVerdict(t *testing.T) {
	var buf bytes.Buffer
	report.NewPrinter(&buf).Summary(pipeline.State{Task: pipeline.TaskCode})

	out := buf.String()
	assert.NotContains(t, out, "Verdict")
	assert.Contains(t, out, "$0.0000")
}

func TestPrinter_Snapshots(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  []string
	}{
		{name: "empty", want: []string{"No snapshots."}},
		{name: "listed", names: []string{"shop_200", "shop_100"}, want: []string{"Snapshot", "shop_200", "shop_100"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			report.NewPrinter(&buf).Snapshots(tt.names)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestPrinter_Estimate(t *testing.T) {
	var buf bytes.Buffer
	report.NewPrinter(&buf).Estimate(usage.EstimateRun("openai", "abcd"))

	out := buf.String()
	assert.Contains(t, out, "Estimate (openai)")
	assert.Contains(t, out, "2301")
	assert.Contains(t, out, "3801")
}
