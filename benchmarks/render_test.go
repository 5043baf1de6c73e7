package benchmarks

import (
	"testing"

	"github.com/randalmurphal/archflow/internal/agents"
	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/design/designtest"
	"github.com/randalmurphal/archflow/internal/tools"
)

func BenchmarkHLDToMermaid(b *testing.B) {
	hld := designtest.HLD()
	for i := 0; i < b.N; i++ {
		_ = tools.HLDToMermaid(&hld)
	}
}

func BenchmarkCheckSyntax(b *testing.B) {
	hld := designtest.HLD()
	code := tools.HLDToMermaid(&hld).Container
	for i := 0; i < b.N; i++ {
		if err := tools.CheckSyntax(code); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRedTeamProbe(b *testing.B) {
	base := designtest.HLD()
	hld := base.WithSecurity(designtest.Security())
	for i := 0; i < b.N; i++ {
		_ = agents.RedTeamProbe(hld)
	}
}

func BenchmarkRenderMarkdown(b *testing.B) {
	base := designtest.HLD()
	lld := designtest.LLD()
	verdict := designtest.Approved()
	r := design.Report{
		Title:   "URL Shortener",
		HLD:     base.WithSecurity(designtest.Security()),
		LLD:     &lld,
		Verdict: &verdict,
	}
	for i := 0; i < b.N; i++ {
		_ = design.RenderMarkdown(r)
	}
}
