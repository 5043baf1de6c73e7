// Package report renders pipeline progress and results for the terminal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/pipeline"
	"github.com/randalmurphal/archflow/internal/usage"
)

// Printer writes styled output to one writer. Colors are only emitted when
// the writer is a terminal.
type Printer struct {
	w     io.Writer
	r     *lipgloss.Renderer
	st    styles
	shown int
}

// NewPrinter returns a Printer bound to w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{w: w, r: r, st: newStyles(r)}
}

// Progress prints the log entries added since the previous call.
func (p *Printer) Progress(pr pipeline.Progress) {
	logs := pr.State.Logs
	if p.shown > len(logs) {
		p.shown = 0
	}
	for _, entry := range logs[p.shown:] {
		fmt.Fprintf(p.w, "%s %s %s\n",
			p.st.muted.Render(entry.Timestamp.Format("15:04:05")),
			p.st.role.Render(string(entry.Role)),
			entry.Message)
	}
	p.shown = len(logs)
}

// Logs prints the whole run log.
func (p *Printer) Logs(s pipeline.State) {
	p.shown = 0
	p.Progress(pipeline.Progress{State: s})
}

// Summary prints the outcome of a run.
func (p *Printer) Summary(s pipeline.State) {
	fmt.Fprintln(p.w, p.st.header.Render("Summary"))

	rows := [][]string{{"Task", string(s.Task)}}
	if s.Verdict != nil {
		rows = append(rows,
			[]string{"Verdict", p.verdict(s)},
			[]string{"Evaluations", strconv.Itoa(s.RetryCount)},
		)
	}
	for _, d := range diagramsOf(s) {
		status := p.st.success.Render(d.Path)
		if !d.OK() {
			status = p.st.failure.Render(d.RenderError)
		}
		rows = append(rows, []string{d.Kind.Title(), status})
	}
	if s.DiagramReview != nil {
		rows = append(rows, []string{"Diagram review", p.review(s)})
	}
	if s.Scaffold != nil {
		rows = append(rows, []string{"Scaffold", fmt.Sprintf("%d files in %s", len(s.Scaffold.Spec.Files), s.Scaffold.OutputDir)})
	}
	rows = append(rows,
		[]string{"Tokens", fmt.Sprintf("%d (prompt %d, completion %d)", s.TotalTokens, s.PromptTokens, s.CompletionTokens)},
		[]string{"Cost", formatCost(s.Cost())},
	)

	fmt.Fprintln(p.w, p.table(nil, rows))
}

func (p *Printer) verdict(s pipeline.State) string {
	summary := s.Verdict.Summary()
	if s.Approved() {
		return p.st.success.Render(summary)
	}
	return p.st.warning.Render(summary)
}

func (p *Printer) review(s pipeline.State) string {
	r := s.DiagramReview
	if r.ValidSyntax && len(r.MissingElements) == 0 && len(r.InvalidElements) == 0 {
		return p.st.success.Render("consistent")
	}
	var parts []string
	if !r.ValidSyntax {
		parts = append(parts, "syntax issues")
	}
	if n := len(r.MissingElements); n > 0 {
		parts = append(parts, fmt.Sprintf("%d missing", n))
	}
	if n := len(r.InvalidElements); n > 0 {
		parts = append(parts, fmt.Sprintf("%d unknown", n))
	}
	return p.st.warning.Render(strings.Join(parts, ", "))
}

// Snapshots prints snapshot names, newest first.
func (p *Printer) Snapshots(names []string) {
	if len(names) == 0 {
		fmt.Fprintln(p.w, p.st.muted.Render("No snapshots."))
		return
	}
	rows := make([][]string, 0, len(names))
	for i, n := range names {
		rows = append(rows, []string{strconv.Itoa(i + 1), n})
	}
	fmt.Fprintln(p.w, p.table([]string{"#", "Snapshot"}, rows))
}

// Estimate prints a pre-run projection.
func (p *Printer) Estimate(e usage.Estimate) {
	fmt.Fprintln(p.w, p.st.header.Render("Estimate ("+e.Provider+")"))
	fmt.Fprintln(p.w, p.table(nil, [][]string{
		{"Input tokens", strconv.Itoa(e.InputTokens)},
		{"Output tokens", strconv.Itoa(e.OutputTokens)},
		{"Total tokens", strconv.Itoa(e.TotalTokens)},
		{"Cost", formatCost(e.Cost)},
	}))
}

func (p *Printer) table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.st.border).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := p.r.NewStyle().Padding(0, 1)
			if row == table.HeaderRow || (headers == nil && col == 0) {
				s = s.Bold(true)
			}
			return s
		}).
		Rows(rows...)
	if headers != nil {
		t = t.Headers(headers...)
	}
	return t.Render()
}

func diagramsOf(s pipeline.State) []design.Diagram {
	if s.Diagrams == nil {
		return nil
	}
	return s.Diagrams.Diagrams
}

func formatCost(c float64) string {
	return "$" + strconv.FormatFloat(c, 'f', 4, 64)
}
