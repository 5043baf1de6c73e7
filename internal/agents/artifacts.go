package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/prompt"
	"github.com/randalmurphal/archflow/internal/tools"
	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
)

// visualSummary is the part of the HLD the visual architect sees.
type visualSummary struct {
	ArchitectureOverview design.ArchitectureOverview `json:"architecture_overview"`
	CoreComponents       []design.Component          `json:"core_components"`
	DataArchitecture     design.DataArchitecture     `json:"data_architecture"`
}

// VisualArchitect asks for Mermaid code for every diagram kind and hands it
// to r. Kinds the model leaves empty are generated from the HLD. fixNotes
// describes render failures of a previous attempt and may be empty.
func VisualArchitect(ctx context.Context, client llm.Client, r tools.DiagramRenderer, hld *design.HighLevelDesign, fixNotes string) (design.DiagramArtifacts, llm.TokenUsage, error) {
	if hld == nil {
		return design.DiagramArtifacts{}, llm.TokenUsage{}, missing("high-level design")
	}
	summary, err := toJSON(visualSummary{
		ArchitectureOverview: hld.ArchitectureOverview,
		CoreComponents:       hld.CoreComponents,
		DataArchitecture:     hld.DataArchitecture,
	})
	if err != nil {
		return design.DiagramArtifacts{}, llm.TokenUsage{}, err
	}
	if fixNotes != "" {
		fixNotes = "\n" + fixNotes
	}

	code, usage, err := call[design.DiagramCode](ctx, client, prompt.Visuals, prompt.Vars{
		"fix_notes": fixNotes,
		"hld":       summary,
	})
	if err != nil {
		return design.DiagramArtifacts{}, usage, err
	}

	fallback := tools.HLDToMermaid(hld)
	for _, kind := range design.DiagramKinds {
		if strings.TrimSpace(code.Get(kind)) != "" {
			continue
		}
		loggerFrom(ctx).Info("diagram generated from design", "kind", kind)
		switch kind {
		case design.SystemContext:
			code.SystemContext = fallback.SystemContext
		case design.Container:
			code.Container = fallback.Container
		case design.DataFlow:
			code.DataFlow = fallback.DataFlow
		}
	}

	return design.DiagramArtifacts{Diagrams: tools.RenderAll(ctx, r, code)}, usage, nil
}

// DiagramValidator reviews diagrams against the HLD's components. The
// review is an annotation; it never changes the diagrams.
func DiagramValidator(ctx context.Context, client llm.Client, hld *design.HighLevelDesign, diagrams *design.DiagramArtifacts) (design.DiagramReview, llm.TokenUsage, error) {
	if diagrams == nil {
		return design.DiagramReview{}, llm.TokenUsage{}, missing("diagrams")
	}

	components := "none listed"
	if names := hld.ComponentNames(); len(names) > 0 {
		components = "- " + strings.Join(names, "\n- ")
	}

	var b strings.Builder
	for _, d := range diagrams.Diagrams {
		fmt.Fprintf(&b, "### %s\n```mermaid\n%s\n```\n", d.Kind.Title(), strings.TrimRight(d.Code, "\n"))
		if d.RenderError != "" {
			fmt.Fprintf(&b, "Render error: %s\n", d.RenderError)
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		b.WriteString("No diagrams were produced.")
	}

	return call[design.DiagramReview](ctx, client, prompt.DiagramValidator, prompt.Vars{
		"components": components,
		"diagrams":   b.String(),
	})
}

// Scaffolder asks for a starter project for lld and writes it with w.
// The writer's log lines are kept on the result.
func Scaffolder(ctx context.Context, client llm.Client, w tools.ScaffoldWriter, lld *design.LowLevelDesign) (design.ScaffoldArtifacts, llm.TokenUsage, error) {
	if lld == nil {
		return design.ScaffoldArtifacts{}, llm.TokenUsage{}, missing("low-level design")
	}
	doc, err := toJSON(lld)
	if err != nil {
		return design.ScaffoldArtifacts{}, llm.TokenUsage{}, err
	}

	spec, usage, err := call[design.ScaffoldSpec](ctx, client, prompt.Scaffold, prompt.Vars{"lld": doc})
	if err != nil {
		return design.ScaffoldArtifacts{}, usage, err
	}

	out := design.ScaffoldArtifacts{Spec: spec, Log: w.Write(ctx, spec)}
	if d, ok := w.(interface{ Dir(context.Context) string }); ok {
		out.OutputDir = d.Dir(ctx)
	}
	return out, usage, nil
}
