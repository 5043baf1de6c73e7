package agents

import (
	"context"
	"strings"

	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/knowledge"
	"github.com/randalmurphal/archflow/internal/prompt"
	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
)

// NoContext is the knowledge context used when search fails or finds nothing.
const NoContext = "No knowledge base context available."

// ManagerInput is what the manager designs from.
type ManagerInput struct {
	UserRequest string
	// Feedback is optional human feedback on an earlier draft.
	Feedback string
}

// Manager writes the first high-level design. Knowledge search failures
// are logged and replaced by NoContext.
func Manager(ctx context.Context, client llm.Client, kb knowledge.Searcher, in ManagerInput) (design.HighLevelDesign, llm.TokenUsage, error) {
	if kb == nil {
		kb = knowledge.Nop{}
	}
	background, err := kb.Search(ctx, in.UserRequest)
	if err != nil {
		loggerFrom(ctx).Warn("knowledge search failed", "error", err)
		background = ""
	}
	if strings.TrimSpace(background) == "" {
		background = NoContext
	}

	feedback := ""
	if fb := strings.TrimSpace(in.Feedback); fb != "" {
		feedback = "\nAddress this feedback on the previous draft:\n" + fb + "\n"
	}

	return call[design.HighLevelDesign](ctx, client, prompt.Manager, prompt.Vars{
		"context":  background,
		"feedback": feedback,
		"request":  in.UserRequest,
	})
}

// SecuritySpecialist hardens the security section of hld. The returned
// section replaces the HLD's; findings of RedTeamProbe against the
// hardened design are appended to its threat model summary.
func SecuritySpecialist(ctx context.Context, client llm.Client, hld *design.HighLevelDesign) (design.SecurityCompliance, llm.TokenUsage, error) {
	if hld == nil {
		return design.SecurityCompliance{}, llm.TokenUsage{}, missing("high-level design")
	}
	doc, err := toJSON(hld)
	if err != nil {
		return design.SecurityCompliance{}, llm.TokenUsage{}, err
	}

	sec, usage, err := call[design.SecurityCompliance](ctx, client, prompt.Security, prompt.Vars{"hld": doc})
	if err != nil {
		return sec, usage, err
	}

	if findings := RedTeamProbe(hld.WithSecurity(sec)); len(findings) > 0 {
		loggerFrom(ctx).Warn("red team probe flagged the design", "findings", len(findings))
		sec.ThreatModelSummary = foldFindings(sec.ThreatModelSummary, findings)
	}
	return sec, usage, nil
}

// TeamLead derives the low-level design.
func TeamLead(ctx context.Context, client llm.Client, hld *design.HighLevelDesign) (design.LowLevelDesign, llm.TokenUsage, error) {
	if hld == nil {
		return design.LowLevelDesign{}, llm.TokenUsage{}, missing("high-level design")
	}
	doc, err := toJSON(hld)
	if err != nil {
		return design.LowLevelDesign{}, llm.TokenUsage{}, err
	}
	return call[design.LowLevelDesign](ctx, client, prompt.TeamLead, prompt.Vars{"hld": doc})
}

// Judge evaluates the design pair.
func Judge(ctx context.Context, client llm.Client, hld *design.HighLevelDesign, lld *design.LowLevelDesign) (design.Verdict, llm.TokenUsage, error) {
	if hld == nil || lld == nil {
		return design.Verdict{}, llm.TokenUsage{}, missing("design pair")
	}
	h, err := toJSON(hld)
	if err != nil {
		return design.Verdict{}, llm.TokenUsage{}, err
	}
	l, err := toJSON(lld)
	if err != nil {
		return design.Verdict{}, llm.TokenUsage{}, err
	}
	return call[design.Verdict](ctx, client, prompt.Judge, prompt.Vars{"hld": h, "lld": l})
}

// Refiner rewrites both documents to address verdict. The result replaces
// them entirely.
func Refiner(ctx context.Context, client llm.Client, verdict *design.Verdict, hld *design.HighLevelDesign, lld *design.LowLevelDesign) (design.RefinedDesign, llm.TokenUsage, error) {
	if verdict == nil || hld == nil || lld == nil {
		return design.RefinedDesign{}, llm.TokenUsage{}, missing("verdict and design pair")
	}
	h, err := toJSON(hld)
	if err != nil {
		return design.RefinedDesign{}, llm.TokenUsage{}, err
	}
	l, err := toJSON(lld)
	if err != nil {
		return design.RefinedDesign{}, llm.TokenUsage{}, err
	}

	issues := "none listed"
	if list := verdict.Issues(); len(list) > 0 {
		issues = "- " + strings.Join(list, "\n- ")
	}
	return call[design.RefinedDesign](ctx, client, prompt.Refiner, prompt.Vars{
		"critique": verdict.Critique,
		"issues":   issues,
		"hld":      h,
		"lld":      l,
	})
}
