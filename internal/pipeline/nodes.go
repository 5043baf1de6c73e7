package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/archflow/internal/agents"
	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/provider"
	"github.com/randalmurphal/archflow/internal/tools"
	"github.com/randalmurphal/archflow/pkg/flowgraph"
	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
	"github.com/randalmurphal/archflow/pkg/flowgraph/observability"
)

// invoke resolves the client for tier and runs one agent call with it,
// recording tokens, a span and a log line.
func invoke[T any](p *Pipeline, ctx flowgraph.Context, s State, role Role, tier provider.Tier, call func(llm.Client) (T, llm.TokenUsage, error)) (T, llm.TokenUsage, error) {
	var zero T
	client, err := p.deps.Clients.Client(s.Provider, tier)
	if err != nil {
		return zero, llm.TokenUsage{}, err
	}
	model, _ := p.deps.Clients.Model(s.Provider, tier)

	_, span := p.spans.StartAgentSpan(ctx, string(role), model)
	start := time.Now()
	out, used, err := call(client)
	p.spans.EndSpanWithError(span, err)
	p.metrics.RecordTokens(ctx, string(role), used.PromptTokens, used.CompletionTokens)
	if err != nil {
		return zero, used, err
	}
	observability.LogAgentCall(ctx.Logger(), string(role), model, used.PromptTokens, used.CompletionTokens, time.Since(start))
	return out, used, nil
}

// commit applies u to s and hands it to the stream observer, if any.
func commit(ctx context.Context, s State, u Update) State {
	if obs, ok := ctx.Value(observerKey{}).(*observer); ok {
		obs.last = u
	}
	return s.Apply(u)
}

func (p *Pipeline) manager(ctx flowgraph.Context, s State) (State, error) {
	hld, used, err := invoke(p, ctx, s, RoleManager, provider.Smart, func(c llm.Client) (design.HighLevelDesign, llm.TokenUsage, error) {
		return agents.Manager(ctx, c, p.deps.Knowledge, agents.ManagerInput{
			UserRequest: s.UserRequest,
			Feedback:    s.Feedback,
		})
	})
	if err != nil {
		return s, err
	}
	msg := fmt.Sprintf("Drafted high-level design (%s) with %d components: %s",
		orUnknown(hld.ArchitectureOverview.Style), len(hld.CoreComponents), strings.Join(hld.ComponentNames(), ", "))
	return commit(ctx, s, ManagerUpdate{Delta: newDelta(used, RoleManager, msg), HLD: &hld}), nil
}

func (p *Pipeline) security(ctx flowgraph.Context, s State) (State, error) {
	sec, used, err := invoke(p, ctx, s, RoleSecurity, provider.Smart, func(c llm.Client) (design.SecurityCompliance, llm.TokenUsage, error) {
		return agents.SecuritySpecialist(ctx, c, s.HLD)
	})
	if err != nil {
		return s, err
	}
	msg := "Hardened security design"
	if sec.AuthenticationStrategy != "" {
		msg += ": " + sec.AuthenticationStrategy
	}
	return commit(ctx, s, SecurityUpdate{Delta: newDelta(used, RoleSecurity, msg), Security: sec}), nil
}

func (p *Pipeline) teamLead(ctx flowgraph.Context, s State) (State, error) {
	lld, used, err := invoke(p, ctx, s, RoleTeamLead, provider.Smart, func(c llm.Client) (design.LowLevelDesign, llm.TokenUsage, error) {
		return agents.TeamLead(ctx, c, s.HLD)
	})
	if err != nil {
		return s, err
	}
	msg := fmt.Sprintf("Wrote low-level design: %d components, %d endpoints, %d entities",
		len(lld.DetailedComponents), len(lld.APIDesign), len(lld.DataModel))
	return commit(ctx, s, TeamLeadUpdate{Delta: newDelta(used, RoleTeamLead, msg), LLD: &lld}), nil
}

func (p *Pipeline) judge(ctx flowgraph.Context, s State) (State, error) {
	verdict, used, err := invoke(p, ctx, s, RoleJudge, provider.Fast, func(c llm.Client) (design.Verdict, llm.TokenUsage, error) {
		return agents.Judge(ctx, c, s.HLD, s.LLD)
	})
	if err != nil {
		return s, err
	}
	next := commit(ctx, s, JudgeUpdate{
		Delta:   newDelta(used, RoleJudge, fmt.Sprintf("Evaluation %d: %s", s.RetryCount+1, verdict.Summary())),
		Verdict: &verdict,
	})

	outcome := CheckQuality(next, p.cfg.maxRefinementRetries)
	observability.LogVerdict(ctx.Logger(), verdict.IsValid, next.RetryCount, outcome.String())
	p.metrics.RecordVerdict(ctx, outcome.String(), next.RetryCount)
	return next, nil
}

func (p *Pipeline) refiner(ctx flowgraph.Context, s State) (State, error) {
	refined, used, err := invoke(p, ctx, s, RoleRefiner, provider.Smart, func(c llm.Client) (design.RefinedDesign, llm.TokenUsage, error) {
		return agents.Refiner(ctx, c, s.Verdict, s.HLD, s.LLD)
	})
	if err != nil {
		return s, err
	}
	msg := "Revised design"
	if len(refined.ImprovementNotes) > 0 {
		msg += ": " + strings.Join(refined.ImprovementNotes, "; ")
	}
	return commit(ctx, s, RefinerUpdate{
		Delta: newDelta(used, RoleRefiner, msg),
		HLD:   &refined.HLD,
		LLD:   &refined.LLD,
	}), nil
}

func (p *Pipeline) visuals(ctx flowgraph.Context, s State) (State, error) {
	fixNotes := s.Diagrams.FixNotes()
	artifacts, used, err := invoke(p, ctx, s, RoleVisuals, provider.Smart, func(c llm.Client) (design.DiagramArtifacts, llm.TokenUsage, error) {
		return agents.VisualArchitect(runOutput(ctx), c, p.deps.Renderer, s.HLD, fixNotes)
	})
	if err != nil {
		return s, err
	}
	failed := len(artifacts.Failed())
	msg := fmt.Sprintf("Rendered %d/%d diagrams", len(artifacts.Diagrams)-failed, len(artifacts.Diagrams))
	if fixNotes != "" {
		msg += " after fix-up"
	}
	return commit(ctx, s, VisualsUpdate{Delta: newDelta(used, RoleVisuals, msg), Diagrams: &artifacts}), nil
}

func (p *Pipeline) diagramValidator(ctx flowgraph.Context, s State) (State, error) {
	review, used, err := invoke(p, ctx, s, RoleDiagramValidator, provider.Smart, func(c llm.Client) (design.DiagramReview, llm.TokenUsage, error) {
		return agents.DiagramValidator(ctx, c, s.HLD, s.Diagrams)
	})
	if err != nil {
		return s, err
	}
	msg := "Diagrams consistent with design"
	if !review.ValidSyntax || len(review.MissingElements) > 0 || len(review.InvalidElements) > 0 {
		msg = fmt.Sprintf("Diagram review: syntax valid %t, %d missing, %d invalid",
			review.ValidSyntax, len(review.MissingElements), len(review.InvalidElements))
	}
	return commit(ctx, s, DiagramReviewUpdate{Delta: newDelta(used, RoleDiagramValidator, msg), Review: &review}), nil
}

func (p *Pipeline) scaffold(ctx flowgraph.Context, s State) (State, error) {
	artifacts, used, err := invoke(p, ctx, s, RoleScaffold, provider.Smart, func(c llm.Client) (design.ScaffoldArtifacts, llm.TokenUsage, error) {
		return agents.Scaffolder(runOutput(ctx), c, p.deps.Writer, s.LLD)
	})
	if err != nil {
		return s, err
	}
	msg := fmt.Sprintf("Generated %d starter files", len(artifacts.Spec.Files))
	if artifacts.OutputDir != "" {
		msg += " in " + artifacts.OutputDir
	}
	return commit(ctx, s, ScaffoldUpdate{Delta: newDelta(used, RoleScaffold, msg), Scaffold: &artifacts}), nil
}

// runOutput places diagram and scaffold files under a directory named
// after the run.
func runOutput(ctx flowgraph.Context) context.Context {
	return tools.WithRunDir(ctx, ctx.RunID())
}

func orUnknown(s string) string {
	if s == "" {
		return "unspecified style"
	}
	return s
}
