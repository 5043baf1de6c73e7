package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/design/designtest"
	"github.com/randalmurphal/archflow/internal/pipeline"
	"github.com/randalmurphal/archflow/internal/provider"
	"github.com/randalmurphal/archflow/internal/structured"
	"github.com/randalmurphal/archflow/internal/tools"
	"github.com/randalmurphal/archflow/pkg/flowgraph"
	"github.com/randalmurphal/archflow/pkg/flowgraph/checkpoint"
	fgerrors "github.com/randalmurphal/archflow/pkg/flowgraph/errors"
	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
)

// Schema names sent by structured.Generate, one per agent.
const (
	schemaHLD      = "HighLevelDesign"
	schemaSecurity = "SecurityCompliance"
	schemaLLD      = "LowLevelDesign"
	schemaVerdict  = "Verdict"
	schemaRefined  = "RefinedDesign"
	schemaDiagrams = "DiagramCode"
	schemaReview   = "DiagramReview"
	schemaScaffold = "ScaffoldSpec"
)

var callUsage = llm.TokenUsage{PromptTokens: 100, CompletionTokens: 50}

type call struct {
	schema string
	tier   provider.Tier
	system string
}

// script answers model calls by response schema. Each schema has a queue
// of responses; the last one repeats. A queued error fails that call.
type script struct {
	mu        sync.Mutex
	responses map[string][]any
	calls     []call
	onCall    func(schema string)
}

func newScript() *script {
	return &script{responses: map[string][]any{
		schemaHLD:      {designtest.JSON(designtest.HLD())},
		schemaSecurity: {designtest.JSON(designtest.Security())},
		schemaLLD:      {designtest.JSON(designtest.LLD())},
		schemaVerdict:  {designtest.JSON(designtest.Approved())},
		schemaRefined:  {designtest.JSON(designtest.Refined("tightened latency budget"))},
		schemaDiagrams: {designtest.JSON(designtest.Diagrams())},
		schemaReview:   {designtest.JSON(design.DiagramReview{ValidSyntax: true, Critique: "ok"})},
		schemaScaffold: {designtest.JSON(designtest.Scaffold())},
	}}
}

func (s *script) set(schema string, responses ...any) *script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[schema] = responses
	return s
}

func (s *script) count(schema string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.schema == schema {
			n++
		}
	}
	return n
}

func (s *script) callsFor(schema string) []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []call
	for _, c := range s.calls {
		if c.schema == schema {
			out = append(out, c)
		}
	}
	return out
}

func (s *script) client(tier provider.Tier) llm.Client {
	return llm.NewMockClient("").WithHandler(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		name := req.ResponseFormat.Name

		s.mu.Lock()
		s.calls = append(s.calls, call{schema: name, tier: tier, system: req.SystemPrompt})
		queue := s.responses[name]
		var next any
		if len(queue) > 0 {
			next = queue[0]
			if len(queue) > 1 {
				s.responses[name] = queue[1:]
			}
		}
		hook := s.onCall
		s.mu.Unlock()

		if hook != nil {
			hook(name)
		}
		switch v := next.(type) {
		case error:
			return nil, v
		case string:
			return &llm.CompletionResponse{Content: v, Usage: callUsage}, nil
		}
		return nil, errors.New("no scripted response for " + name)
	})
}

// fakeClients hands out scripted clients and requires an API key.
type fakeClients struct {
	script *script
}

func (f fakeClients) Check(cfg provider.Config) error {
	if cfg.Name != provider.OpenAI {
		return &provider.UnknownProviderError{Name: cfg.Name, Known: []string{provider.OpenAI}}
	}
	if cfg.APIKey == "" {
		return &provider.MissingCredentialsError{Provider: cfg.Name, EnvVars: []string{"OPENAI_API_KEY"}}
	}
	return nil
}

func (f fakeClients) Model(_ provider.Config, tier provider.Tier) (string, error) {
	return "model-" + string(tier), nil
}

func (f fakeClients) Client(cfg provider.Config, tier provider.Tier) (llm.Client, error) {
	if err := f.Check(cfg); err != nil {
		return nil, err
	}
	return f.script.client(tier), nil
}

var openAI = provider.Config{Name: provider.OpenAI, APIKey: "sk-test"}

func newPipeline(t *testing.T, sc *script, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	dir := t.TempDir()
	p, err := pipeline.New(pipeline.Deps{
		Clients:  fakeClients{script: sc},
		Renderer: tools.NewFileRenderer(dir),
		Writer:   tools.NewDirWriter(dir),
	}, opts...)
	require.NoError(t, err)
	return p
}

func architectureState() pipeline.State {
	return pipeline.NewState(pipeline.TaskArchitecture, "Design a URL shortener with analytics", openAI)
}

func rejected(critique string) string {
	return designtest.JSON(designtest.Rejected(critique))
}

func TestRun_URLShortener(t *testing.T) {
	sc := newScript().set(schemaVerdict, rejected("p99 latency target not addressed"), designtest.JSON(designtest.Approved()))
	p := newPipeline(t, sc)

	final, err := p.Run(context.Background(), architectureState())
	require.NoError(t, err)

	assert.Equal(t, 2, final.RetryCount)
	require.NotNil(t, final.Verdict)
	assert.True(t, final.Verdict.IsValid)
	assert.GreaterOrEqual(t, len(final.Logs), 6)
	assert.Equal(t, 1, sc.count(schemaRefined))
	assert.Equal(t, 2, sc.count(schemaVerdict))

	roles := make([]pipeline.Role, 0, len(final.Logs))
	for _, l := range final.Logs {
		roles = append(roles, l.Role)
	}
	assert.Equal(t, []pipeline.Role{
		pipeline.RoleManager, pipeline.RoleSecurity, pipeline.RoleTeamLead,
		pipeline.RoleJudge, pipeline.RoleRefiner, pipeline.RoleJudge,
	}, roles)

	assert.Equal(t, 6*150, final.TotalTokens)
	assert.Equal(t, 6*100, final.PromptTokens)
	assert.Equal(t, 6*50, final.CompletionTokens)

	refinerPrompt := sc.callsFor(schemaRefined)[0].system
	assert.Contains(t, refinerPrompt, "p99 latency target not addressed")
}

func TestRun_JudgeUsesFastTier(t *testing.T) {
	sc := newScript()
	_, err := newPipeline(t, sc).Run(context.Background(), architectureState())
	require.NoError(t, err)

	for _, c := range sc.calls {
		want := provider.Smart
		if c.schema == schemaVerdict {
			want = provider.Fast
		}
		assert.Equal(t, want, c.tier, c.schema)
	}
}

func TestRun_ApprovalShortCircuit(t *testing.T) {
	sc := newScript()
	final, err := newPipeline(t, sc).Run(context.Background(), architectureState())
	require.NoError(t, err)

	assert.Equal(t, 1, final.RetryCount)
	assert.True(t, final.Approved())
	assert.Zero(t, sc.count(schemaRefined))
	assert.Nil(t, final.Diagrams)
	assert.Len(t, final.Logs, 4)
}

func TestRun_Exhaustion(t *testing.T) {
	tests := []struct {
		name string
		k    int
	}{
		{name: "default", k: pipeline.DefaultMaxRefinementRetries},
		{name: "no refinement", k: 0},
		{name: "one refinement", k: 1},
		{name: "budget past the engine default", k: 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newScript().set(schemaVerdict, rejected("missing caching layer"))
			p := newPipeline(t, sc, pipeline.WithMaxRefinementRetries(tt.k))

			final, err := p.Run(context.Background(), architectureState())
			require.NoError(t, err)

			assert.Equal(t, tt.k+1, final.RetryCount)
			require.NotNil(t, final.Verdict)
			assert.False(t, final.Verdict.IsValid)
			assert.Equal(t, tt.k+1, sc.count(schemaVerdict))
			assert.Equal(t, tt.k, sc.count(schemaRefined))
		})
	}
}

func TestRun_LongestPathFitsIterationGuard(t *testing.T) {
	broken := designtest.Diagrams()
	broken.Container = "flowchart TD\n  a[unclosed --> b"
	sc := newScript().
		set(schemaVerdict, rejected("no cache"), rejected("no rate limiting"), designtest.JSON(designtest.Approved())).
		set(schemaDiagrams, designtest.JSON(broken))
	p := newPipeline(t, sc,
		pipeline.WithMaxRefinementRetries(2),
		pipeline.WithMaxDiagramFixes(2),
		pipeline.WithDiagramsAfterApproval(true),
	)

	var nodes []string
	for pr, err := range p.Stream(context.Background(), architectureState()) {
		require.NoError(t, err)
		nodes = append(nodes, pr.Node)
	}

	assert.Len(t, nodes, 12)
	assert.Equal(t, 3, sc.count(schemaVerdict))
	assert.Equal(t, 3, sc.count(schemaDiagrams))
	assert.Equal(t, pipeline.NodeDiagramValidator, nodes[len(nodes)-1])
}

func TestStream_EntryRouting(t *testing.T) {
	hld := designtest.HLD()
	lld := designtest.LLD()

	tests := []struct {
		name  string
		state pipeline.State
		nodes []string
	}{
		{
			name:  "architecture",
			state: architectureState(),
			nodes: []string{pipeline.NodeManager, pipeline.NodeSecurity, pipeline.NodeTeamLead, pipeline.NodeJudge},
		},
		{
			name:  "diagrams",
			state: pipeline.State{Task: pipeline.TaskDiagrams, Provider: openAI, HLD: &hld},
			nodes: []string{pipeline.NodeVisuals, pipeline.NodeDiagramValidator},
		},
		{
			name:  "code",
			state: pipeline.State{Task: pipeline.TaskCode, Provider: openAI, LLD: &lld},
			nodes: []string{pipeline.NodeScaffold},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, newScript())

			var nodes []string
			for progress, err := range p.Stream(context.Background(), tt.state) {
				require.NoError(t, err)
				nodes = append(nodes, progress.Node)
			}
			assert.Equal(t, tt.nodes, nodes)
		})
	}
}

func TestStream_Invariants(t *testing.T) {
	sc := newScript().set(schemaVerdict, rejected("a"), rejected("b"), designtest.JSON(designtest.Approved()))
	p := newPipeline(t, sc, pipeline.WithDiagramsAfterApproval(true))

	prev := architectureState()
	var nodes []string
	for progress, err := range p.Stream(context.Background(), prev) {
		require.NoError(t, err)
		s := progress.State
		nodes = append(nodes, progress.Node)

		// Logs only grow, and earlier entries are untouched.
		require.Greater(t, len(s.Logs), len(prev.Logs))
		if len(prev.Logs) > 0 {
			assert.Equal(t, prev.Logs, s.Logs[:len(prev.Logs)])
		}

		assert.GreaterOrEqual(t, s.TotalTokens, prev.TotalTokens)
		assert.GreaterOrEqual(t, s.PromptTokens, prev.PromptTokens)
		assert.GreaterOrEqual(t, s.CompletionTokens, prev.CompletionTokens)

		if progress.Node == pipeline.NodeJudge {
			assert.Equal(t, prev.RetryCount+1, s.RetryCount)
			assert.IsType(t, pipeline.JudgeUpdate{}, progress.Update)
		} else {
			assert.Equal(t, prev.RetryCount, s.RetryCount, progress.Node)
		}
		assert.LessOrEqual(t, s.RetryCount, pipeline.DefaultMaxRefinementRetries+1)

		assert.Equal(t, pipeline.TaskArchitecture, s.Task)
		assert.Equal(t, prev.UserRequest, s.UserRequest)
		require.NotNil(t, progress.Update, progress.Node)
		prev = s
	}

	assert.Equal(t, []string{
		pipeline.NodeManager, pipeline.NodeSecurity, pipeline.NodeTeamLead,
		pipeline.NodeJudge, pipeline.NodeRefiner, pipeline.NodeJudge, pipeline.NodeRefiner, pipeline.NodeJudge,
		pipeline.NodeVisuals, pipeline.NodeDiagramValidator,
	}, nodes)
	assert.Equal(t, 3, prev.RetryCount)
	require.NotNil(t, prev.Diagrams)
	require.NotNil(t, prev.DiagramReview)
}

func TestStream_StopEarly(t *testing.T) {
	sc := newScript()
	p := newPipeline(t, sc)

	for progress, err := range p.Stream(context.Background(), architectureState()) {
		require.NoError(t, err)
		if progress.Node == pipeline.NodeSecurity {
			break
		}
	}
	assert.Equal(t, 2, len(sc.calls))
}

func TestRun_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		state   pipeline.State
		wantErr error
	}{
		{name: "diagrams without hld", state: pipeline.State{Task: pipeline.TaskDiagrams, Provider: openAI}, wantErr: pipeline.ErrMissingDesign},
		{name: "code without lld", state: pipeline.State{Task: pipeline.TaskCode, Provider: openAI}, wantErr: pipeline.ErrMissingDesign},
		{name: "unknown task", state: pipeline.State{Task: "deploy", Provider: openAI}, wantErr: pipeline.ErrUnknownTask},
		{name: "empty request", state: pipeline.State{Task: pipeline.TaskArchitecture, Provider: openAI}, wantErr: pipeline.ErrMissingRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newScript()
			_, err := newPipeline(t, sc).Run(context.Background(), tt.state)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, sc.calls)
		})
	}
}

func TestRun_ProviderConfigErrors(t *testing.T) {
	sc := newScript()
	p := newPipeline(t, sc)

	s := architectureState()
	s.Provider = provider.Config{Name: "mistral", APIKey: "x"}
	_, err := p.Run(context.Background(), s)
	var unknown *provider.UnknownProviderError
	assert.ErrorAs(t, err, &unknown)

	s.Provider = provider.Config{Name: provider.OpenAI}
	_, err = p.Run(context.Background(), s)
	var missing *provider.MissingCredentialsError
	assert.ErrorAs(t, err, &missing)

	final, err := p.Run(context.Background(), s, pipeline.WithAPIKey("sk-late"))
	require.NoError(t, err)
	assert.Equal(t, 1, final.RetryCount)
}

func TestRun_NodeErrorsAbort(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		httpErr := &fgerrors.HTTPError{StatusCode: 400, Message: "bad request"}
		sc := newScript().set(schemaLLD, httpErr)

		final, err := newPipeline(t, sc).Run(context.Background(), architectureState())
		require.Error(t, err)

		var nodeErr *flowgraph.NodeError
		require.ErrorAs(t, err, &nodeErr)
		assert.Equal(t, pipeline.NodeTeamLead, nodeErr.NodeID)
		assert.ErrorIs(t, err, httpErr)

		assert.NotNil(t, final.HLD)
		assert.Nil(t, final.LLD)
		assert.Zero(t, final.RetryCount)
		assert.Len(t, final.Logs, 2)
		assert.Zero(t, sc.count(schemaVerdict))
	})

	t.Run("schema error", func(t *testing.T) {
		sc := newScript().set(schemaVerdict, `{"is_valid": "maybe"}`)

		final, err := newPipeline(t, sc).Run(context.Background(), architectureState())

		var schemaErr *structured.SchemaValidationError
		require.ErrorAs(t, err, &schemaErr)
		var nodeErr *flowgraph.NodeError
		require.ErrorAs(t, err, &nodeErr)
		assert.Equal(t, pipeline.NodeJudge, nodeErr.NodeID)
		assert.Nil(t, final.Verdict)
		assert.Zero(t, final.RetryCount)
	})
}

func TestRun_CancellationBetweenNodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc := newScript()
	sc.onCall = func(schema string) {
		if schema == schemaHLD {
			cancel()
		}
	}

	final, err := newPipeline(t, sc).Run(ctx, architectureState())

	var cancelErr *flowgraph.CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, pipeline.NodeSecurity, cancelErr.NodeID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, final.HLD, "the in-flight node completes")
	assert.Equal(t, 1, len(sc.calls))
}

func TestRun_DiagramFixLoop(t *testing.T) {
	hld := designtest.HLD()
	broken := designtest.Diagrams()
	broken.Container = "flowchart TD\n  a[unclosed --> b"

	tests := []struct {
		name       string
		responses  []any
		maxFixes   int
		wantPasses int
		wantFailed int
	}{
		{name: "fixed on retry", responses: []any{designtest.JSON(broken), designtest.JSON(designtest.Diagrams())}, maxFixes: 1, wantPasses: 2},
		{name: "gives up", responses: []any{designtest.JSON(broken)}, maxFixes: 1, wantPasses: 2, wantFailed: 1},
		{name: "fixes disabled", responses: []any{designtest.JSON(broken)}, maxFixes: 0, wantPasses: 1, wantFailed: 1},
		{name: "clean first pass", responses: []any{designtest.JSON(designtest.Diagrams())}, maxFixes: 1, wantPasses: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newScript().set(schemaDiagrams, tt.responses...)
			p := newPipeline(t, sc, pipeline.WithMaxDiagramFixes(tt.maxFixes))

			final, err := p.Run(context.Background(), pipeline.State{Task: pipeline.TaskDiagrams, Provider: openAI, HLD: &hld})
			require.NoError(t, err)

			assert.Equal(t, tt.wantPasses, final.DiagramPasses)
			assert.Equal(t, tt.wantPasses, sc.count(schemaDiagrams))
			assert.Len(t, final.Diagrams.Failed(), tt.wantFailed)
			assert.Zero(t, final.RetryCount)
			assert.NotNil(t, final.DiagramReview, "the review runs either way")

			if tt.wantPasses > 1 {
				assert.Contains(t, sc.callsFor(schemaDiagrams)[1].system, "failed to render")
			}
		})
	}
}

func TestRun_Code(t *testing.T) {
	lld := designtest.LLD()
	sc := newScript()
	final, err := newPipeline(t, sc).Run(context.Background(), pipeline.State{Task: pipeline.TaskCode, Provider: openAI, LLD: &lld})
	require.NoError(t, err)

	require.NotNil(t, final.Scaffold)
	assert.Len(t, final.Scaffold.Spec.Files, 2)
	assert.Contains(t, final.Scaffold.Log[len(final.Scaffold.Log)-1], "Scaffolding complete")
	assert.Same(t, &lld, final.LLD)
}

func TestResume(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	sc := newScript().set(schemaVerdict, &fgerrors.HTTPError{StatusCode: 401, Message: "expired key"}, designtest.JSON(designtest.Approved()))
	p := newPipeline(t, sc, pipeline.WithCheckpoints(store))

	_, err := p.Run(context.Background(), architectureState(), pipeline.WithRunID("run-1"))
	require.Error(t, err)
	assert.Equal(t, 1, sc.count(schemaVerdict))

	_, err = p.Resume(context.Background(), "run-1")
	var missing *provider.MissingCredentialsError
	require.ErrorAs(t, err, &missing, "the API key is not checkpointed")

	final, err := p.Resume(context.Background(), "run-1", pipeline.WithAPIKey("sk-again"))
	require.NoError(t, err)

	assert.Equal(t, 1, final.RetryCount)
	assert.True(t, final.Approved())
	assert.Equal(t, 1, sc.count(schemaHLD), "completed nodes are not re-run")
	assert.Len(t, final.Logs, 4)
}

func TestResume_NoStore(t *testing.T) {
	_, err := newPipeline(t, newScript()).Resume(context.Background(), "run-1")
	assert.ErrorIs(t, err, pipeline.ErrNoCheckpointStore)
}

func TestPipeline_ConcurrentRuns(t *testing.T) {
	sc := newScript()
	p := newPipeline(t, sc)

	var wg sync.WaitGroup
	results := make([]pipeline.State, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Run(context.Background(), architectureState())
			assert.NoError(t, err)
			results[i] = s
		}()
	}
	wg.Wait()

	for _, s := range results {
		assert.Equal(t, 1, s.RetryCount)
		assert.Len(t, s.Logs, 4)
	}
}

func TestPipeline_ConcurrentRunsWriteSeparateOutputs(t *testing.T) {
	lld := designtest.LLD()
	p := newPipeline(t, newScript())

	ids := []string{"run-a", "run-b"}
	results := make([]pipeline.State, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Run(context.Background(), pipeline.State{Task: pipeline.TaskCode, Provider: openAI, LLD: &lld}, pipeline.WithRunID(id))
			assert.NoError(t, err)
			results[i] = s
		}()
	}
	wg.Wait()

	for i, s := range results {
		require.NotNil(t, s.Scaffold)
		assert.Equal(t, ids[i], filepath.Base(filepath.Dir(s.Scaffold.OutputDir)))
		assert.FileExists(t, filepath.Join(s.Scaffold.OutputDir, "README.md"))
	}
	assert.NotEqual(t, results[0].Scaffold.OutputDir, results[1].Scaffold.OutputDir)
}
