package agents_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/archflow/internal/agents"
	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/design/designtest"
	"github.com/randalmurphal/archflow/internal/knowledge"
	"github.com/randalmurphal/archflow/internal/structured"
	"github.com/randalmurphal/archflow/internal/tools"
	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
)

func TestManager(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		kb          knowledge.Searcher
		feedback    string
		wantContext string
		wantAbsent  string
	}{
		{
			name:        "knowledge context",
			kb:          knowledge.SearcherFunc(func(context.Context, string) (string, error) { return "[Source: cache.md]\nuse redis", nil }),
			wantContext: "[Source: cache.md]\nuse redis",
			wantAbsent:  "Address this feedback",
		},
		{
			name:        "search error",
			kb:          knowledge.SearcherFunc(func(context.Context, string) (string, error) { return "", errors.New("db locked") }),
			wantContext: agents.NoContext,
		},
		{
			name:        "nil searcher",
			wantContext: agents.NoContext,
		},
		{
			name:        "feedback",
			kb:          knowledge.Nop{},
			feedback:    "Use PostgreSQL instead of DynamoDB",
			wantContext: "Use PostgreSQL instead of DynamoDB",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llm.NewMockClient(designtest.JSON(designtest.HLD()))

			hld, usage, err := agents.Manager(ctx, client, tt.kb, agents.ManagerInput{
				UserRequest: "Design a URL shortener",
				Feedback:    tt.feedback,
			})
			require.NoError(t, err)
			want := designtest.HLD()
			assert.Equal(t, want.ComponentNames(), hld.ComponentNames())
			assert.Positive(t, usage.TotalTokens)

			call := client.LastCall()
			require.NotNil(t, call)
			assert.Contains(t, call.SystemPrompt, tt.wantContext)
			if tt.wantAbsent != "" {
				assert.NotContains(t, call.SystemPrompt, tt.wantAbsent)
			}
			assert.Equal(t, "Design a URL shortener", call.Messages[0].Content)
		})
	}
}

func TestSecuritySpecialist(t *testing.T) {
	ctx := context.Background()
	hld := designtest.HLD()

	t.Run("clean", func(t *testing.T) {
		client := llm.NewMockClient(designtest.JSON(designtest.Security()))
		sec, _, err := agents.SecuritySpecialist(ctx, client, &hld)
		require.NoError(t, err)
		if diff := cmp.Diff(designtest.Security(), sec); diff != "" {
			t.Errorf("security mismatch (-want +got):\n%s", diff)
		}
		assert.Contains(t, client.LastCall().SystemPrompt, `"core_components"`)
	})

	t.Run("probe findings folded", func(t *testing.T) {
		weak := designtest.Security()
		weak.EncryptionAtRest = "plaintext for now"
		client := llm.NewMockClient(designtest.JSON(weak))

		sec, _, err := agents.SecuritySpecialist(ctx, client, &hld)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sec.ThreatModelSummary, "STRIDE over the public API\n\nRed team findings:"))
		assert.Contains(t, sec.ThreatModelSummary, "Plaintext storage or missing auth detected.")
	})

	t.Run("missing hld", func(t *testing.T) {
		_, _, err := agents.SecuritySpecialist(ctx, llm.NewMockClient("{}"), nil)
		assert.ErrorIs(t, err, agents.ErrMissingInput)
	})
}

func TestRedTeamProbe(t *testing.T) {
	tests := []struct {
		name string
		edit func(*design.HighLevelDesign)
		want []string
	}{
		{name: "clean", edit: func(*design.HighLevelDesign) {}},
		{
			name: "open firewall",
			edit: func(h *design.HighLevelDesign) { h.Risks = []string{"ingress from 0.0.0.0/0"} },
			want: []string{"Overly permissive firewall rules detected."},
		},
		{
			name: "partial credential match",
			edit: func(h *design.HighLevelDesign) { h.Risks = []string{"admin password rotation"} },
		},
		{
			name: "hardcoded admin",
			edit: func(h *design.HighLevelDesign) {
				h.SecurityCompliance.SecretsManagement = "Admin password is hardcoded in config; no auth on metrics"
			},
			want: []string{
				"Plaintext storage or missing auth detected.",
				"Hardcoded admin credentials suspected.",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hld := designtest.HLD()
			tt.edit(&hld)
			assert.Equal(t, tt.want, agents.RedTeamProbe(&hld))
		})
	}
	assert.Nil(t, agents.RedTeamProbe(nil))
}

func TestTeamLeadAndJudge(t *testing.T) {
	ctx := context.Background()
	hld := designtest.HLD()
	lld := designtest.LLD()

	client := llm.NewMockClient(designtest.JSON(lld))
	got, _, err := agents.TeamLead(ctx, client, &hld)
	require.NoError(t, err)
	assert.Len(t, got.APIDesign, 2)

	judge := llm.NewMockClient(designtest.JSON(designtest.Rejected("no caching layer")))
	verdict, _, err := agents.Judge(ctx, judge, &hld, &lld)
	require.NoError(t, err)
	assert.False(t, verdict.IsValid)
	assert.Equal(t, "no caching layer", verdict.Critique)
	assert.Contains(t, judge.LastCall().Messages[0].Content, `"api_design"`)

	_, _, err = agents.Judge(ctx, judge, &hld, nil)
	assert.ErrorIs(t, err, agents.ErrMissingInput)
}

func TestRefiner(t *testing.T) {
	ctx := context.Background()
	hld := designtest.HLD()
	lld := designtest.LLD()
	verdict := designtest.Rejected("p99 target unmet")

	client := llm.NewMockClient(designtest.JSON(designtest.Refined("added cache")))
	refined, _, err := agents.Refiner(ctx, client, &verdict, &hld, &lld)
	require.NoError(t, err)
	assert.Equal(t, []string{"added cache"}, refined.ImprovementNotes)

	system := client.LastCall().SystemPrompt
	assert.Contains(t, system, "p99 target unmet")
	assert.Contains(t, system, "- nfr: p99 target unmet")
}

func TestAgents_SchemaFailure(t *testing.T) {
	hld := designtest.HLD()
	client := llm.NewMockClient(`{"detailed_components": "not a list"}`).
		WithUsage(llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5})

	_, usage, err := agents.TeamLead(context.Background(), client, &hld)

	var schemaErr *structured.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, 15, usage.TotalTokens)
}

func TestVisualArchitect(t *testing.T) {
	ctx := context.Background()
	hld := designtest.HLD()
	dir := t.TempDir()

	code := designtest.Diagrams()
	code.DataFlow = ""
	code.Container = "graph TD\n a[broken --> b"
	client := llm.NewMockClient(designtest.JSON(code))

	out, _, err := agents.VisualArchitect(ctx, client, tools.NewFileRenderer(dir), &hld, "- container: Syntax error")
	require.NoError(t, err)
	require.Len(t, out.Diagrams, 3)

	sc, ok := out.Get(design.SystemContext)
	require.True(t, ok)
	assert.True(t, sc.OK())
	assert.FileExists(t, filepath.Join(dir, "system_context.mmd"))

	c, _ := out.Get(design.Container)
	assert.False(t, c.OK())
	assert.Contains(t, c.RenderError, "Syntax error in Mermaid code")

	df, _ := out.Get(design.DataFlow)
	assert.True(t, df.OK())
	assert.Equal(t, tools.HLDToMermaid(&hld).DataFlow, df.Code)

	system := client.LastCall().SystemPrompt
	assert.Contains(t, system, "- container: Syntax error")
	assert.Contains(t, system, `"core_components"`)
	assert.NotContains(t, system, `"nfrs"`)
}

func TestDiagramValidator(t *testing.T) {
	hld := designtest.HLD()
	diagrams := &design.DiagramArtifacts{Diagrams: []design.Diagram{
		{Kind: design.Container, Code: "flowchart TD\n a --> b", RenderError: "Syntax error in Mermaid code: x"},
	}}
	review := design.DiagramReview{ValidSyntax: false, MissingElements: []string{"store"}, Critique: "store missing"}
	client := llm.NewMockClient(designtest.JSON(review))

	got, _, err := agents.DiagramValidator(context.Background(), client, &hld, diagrams)
	require.NoError(t, err)
	assert.Equal(t, review, got)

	call := client.LastCall()
	assert.Contains(t, call.SystemPrompt, "- api-gateway\n- shortener\n- store")
	assert.Contains(t, call.Messages[0].Content, "### Container\n```mermaid\nflowchart TD")
	assert.Contains(t, call.Messages[0].Content, "Render error: Syntax error in Mermaid code: x")
}

func TestScaffolder(t *testing.T) {
	root := t.TempDir()
	lld := designtest.LLD()
	client := llm.NewMockClient(designtest.JSON(designtest.Scaffold()))

	out, _, err := agents.Scaffolder(context.Background(), client, tools.NewDirWriter(root), &lld)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, tools.AppDir), out.OutputDir)
	assert.Len(t, out.Spec.Files, 2)
	require.Len(t, out.Log, 3)
	assert.Equal(t, "Created generated_app/README.md", out.Log[0])

	data, err := os.ReadFile(filepath.Join(root, tools.AppDir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# shortener\n", string(data))

	_, _, err = agents.Scaffolder(context.Background(), client, tools.NewDirWriter(root), nil)
	assert.ErrorIs(t, err, agents.ErrMissingInput)
}
