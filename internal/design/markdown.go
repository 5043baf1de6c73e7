package design

import (
	"fmt"
	"strings"
)

// Report groups the documents of one run for export.
type Report struct {
	Title    string
	HLD      *HighLevelDesign
	LLD      *LowLevelDesign
	Verdict  *Verdict
	Diagrams *DiagramArtifacts
}

// RenderMarkdown renders r as a Markdown document. Missing documents are
// skipped.
func RenderMarkdown(r Report) string {
	var w mdWriter
	title := r.Title
	if title == "" {
		title = "Architecture"
	}
	w.heading(1, title)

	if r.Verdict != nil {
		w.heading(2, "Review")
		w.line("**Status:** " + r.Verdict.Summary())
		w.para(r.Verdict.Critique)
		w.list(r.Verdict.Issues())
		if len(r.Verdict.Recommendations) > 0 {
			w.heading(3, "Recommendations")
			w.list(r.Verdict.Recommendations)
		}
	}
	if r.HLD != nil {
		renderHLD(&w, r.HLD)
	}
	if r.LLD != nil {
		renderLLD(&w, r.LLD)
	}
	if r.Diagrams != nil && len(r.Diagrams.Diagrams) > 0 {
		w.heading(2, "Diagrams")
		for _, d := range r.Diagrams.Diagrams {
			w.heading(3, d.Kind.Title())
			if !d.OK() {
				w.line("> render failed: " + d.RenderError)
				w.blank()
			}
			w.fence("mermaid", d.Code)
		}
	}
	return w.String()
}

func renderHLD(w *mdWriter, h *HighLevelDesign) {
	w.heading(2, "High-Level Design")

	w.heading(3, "Business Context")
	w.para(h.BusinessContext.ProblemStatement)
	w.labeled("Goals", h.BusinessContext.Goals)
	w.labeled("Constraints", h.BusinessContext.Constraints)

	w.heading(3, "Architecture Overview")
	if h.ArchitectureOverview.Style != "" {
		w.line("**Style:** " + h.ArchitectureOverview.Style)
		w.blank()
	}
	w.para(h.ArchitectureOverview.Summary)
	w.labeled("Tech stack", h.ArchitectureOverview.TechStack)
	w.labeled("External interfaces", h.ArchitectureOverview.ExternalInterfaces)

	if len(h.CoreComponents) > 0 {
		w.heading(3, "Core Components")
		rows := make([][]string, 0, len(h.CoreComponents))
		for _, c := range h.CoreComponents {
			rows = append(rows, []string{c.Name, c.Responsibility, c.Technology, strings.Join(c.Dependencies, ", ")})
		}
		w.table([]string{"Component", "Responsibility", "Technology", "Depends on"}, rows)
	}

	w.heading(3, "Data Architecture")
	if len(h.DataArchitecture.StorageChoices) > 0 {
		rows := make([][]string, 0, len(h.DataArchitecture.StorageChoices))
		for _, s := range h.DataArchitecture.StorageChoices {
			rows = append(rows, []string{s.Component, s.Technology, s.Rationale})
		}
		w.table([]string{"Component", "Storage", "Rationale"}, rows)
	}
	w.para(h.DataArchitecture.DataFlow)

	w.heading(3, "Non-Functional Requirements")
	w.list(nonEmpty(
		prefixed("Scalability", h.NFRs.Scalability),
		prefixed("Availability", h.NFRs.Availability),
		prefixed("Latency", h.NFRs.Latency),
	))
	w.list(h.NFRs.Other)

	sec := h.SecurityCompliance
	w.heading(3, "Security & Compliance")
	w.list(nonEmpty(
		prefixed("Threat model", sec.ThreatModelSummary),
		prefixed("Authentication", sec.AuthenticationStrategy),
		prefixed("Authorization", sec.AuthorizationStrategy),
		prefixed("Secrets", sec.SecretsManagement),
		prefixed("Encryption at rest", sec.EncryptionAtRest),
		prefixed("Encryption in transit", sec.EncryptionInTransit),
		prefixed("Auditing", sec.Auditing),
	))
	w.labeled("Compliance", sec.ComplianceCertifications)

	if len(h.DesignDecisions) > 0 {
		w.heading(3, "Design Decisions")
		for _, d := range h.DesignDecisions {
			w.line("- **" + d.Title + "**: " + d.Rationale)
			if len(d.Alternatives) > 0 {
				w.line("  - Rejected: " + strings.Join(d.Alternatives, "; "))
			}
		}
		w.blank()
	}
	if len(h.Risks) > 0 {
		w.heading(3, "Risks")
		w.list(h.Risks)
	}
}

func renderLLD(w *mdWriter, l *LowLevelDesign) {
	w.heading(2, "Low-Level Design")

	for _, c := range l.DetailedComponents {
		w.heading(3, c.Name)
		w.labeled("Modules", c.Modules)
		w.labeled("Interfaces", c.Interfaces)
	}

	if len(l.APIDesign) > 0 {
		w.heading(3, "API")
		rows := make([][]string, 0, len(l.APIDesign))
		for _, e := range l.APIDesign {
			rows = append(rows, []string{e.Method, "`" + e.Path + "`", e.Description})
		}
		w.table([]string{"Method", "Path", "Description"}, rows)
	}

	if len(l.DataModel) > 0 {
		w.heading(3, "Data Model")
		for _, e := range l.DataModel {
			w.line("- **" + e.Name + "**: " + strings.Join(e.Fields, ", "))
			if len(e.Indexes) > 0 {
				w.line("  - Indexes: " + strings.Join(e.Indexes, ", "))
			}
		}
		w.blank()
	}

	for _, s := range []struct{ title, body string }{
		{"Error Handling", l.ErrorHandling},
		{"Security Implementation", l.SecurityImplementation},
		{"Testing Strategy", l.TestingStrategy},
		{"Operational Readiness", l.OperationalReadiness},
	} {
		if s.body != "" {
			w.heading(3, s.title)
			w.para(s.body)
		}
	}
}

func prefixed(label, value string) string {
	if value == "" {
		return ""
	}
	return "**" + label + ":** " + value
}

func nonEmpty(items ...string) []string {
	out := items[:0]
	for _, it := range items {
		if it != "" {
			out = append(out, it)
		}
	}
	return out
}

type mdWriter struct {
	strings.Builder
}

func (w *mdWriter) heading(level int, text string) {
	w.WriteString(strings.Repeat("#", level) + " " + text + "\n\n")
}

func (w *mdWriter) line(s string) {
	w.WriteString(s + "\n")
}

func (w *mdWriter) blank() {
	w.WriteString("\n")
}

func (w *mdWriter) para(s string) {
	if s = strings.TrimSpace(s); s != "" {
		w.WriteString(s + "\n\n")
	}
}

func (w *mdWriter) list(items []string) {
	if len(items) == 0 {
		return
	}
	for _, it := range items {
		w.WriteString("- " + it + "\n")
	}
	w.blank()
}

func (w *mdWriter) labeled(label string, items []string) {
	if len(items) == 0 {
		return
	}
	w.line("**" + label + ":**")
	w.blank()
	w.list(items)
}

func (w *mdWriter) table(header []string, rows [][]string) {
	w.line("| " + strings.Join(header, " | ") + " |")
	w.line("|" + strings.Repeat(" --- |", len(header)))
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		w.line("| " + strings.Join(cells, " | ") + " |")
	}
	w.blank()
}

func (w *mdWriter) fence(lang, body string) {
	fmt.Fprintf(w, "```%s\n%s\n```\n\n", lang, strings.TrimRight(body, "\n"))
}
