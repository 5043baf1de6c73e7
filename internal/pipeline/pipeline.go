// Package pipeline wires the agents into the architecture graph and owns
// the pipeline state.
//
// Routing is decided by typed outcomes: the task picks the entry node, the
// judge's verdict and the retry count drive the refinement loop, and
// render failures drive a bounded diagram fix-up loop. Only the judge
// increments RetryCount.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/randalmurphal/archflow/internal/knowledge"
	"github.com/randalmurphal/archflow/internal/provider"
	"github.com/randalmurphal/archflow/internal/tools"
	"github.com/randalmurphal/archflow/pkg/flowgraph"
	"github.com/randalmurphal/archflow/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
	"github.com/randalmurphal/archflow/pkg/flowgraph/observability"
)

const (
	// DefaultMaxRefinementRetries is K: a design gets at most K+1
	// evaluations.
	DefaultMaxRefinementRetries = 3

	// DefaultMaxDiagramFixes bounds the visuals passes after the first.
	DefaultMaxDiagramFixes = 1

	// DefaultOutputDir receives diagrams and scaffolds when no renderer or
	// writer is configured.
	DefaultOutputDir = "output"
)

var (
	// ErrMissingDesign is returned when a task's input document is absent.
	ErrMissingDesign = errors.New("missing design input")

	// ErrUnknownTask is returned for a task outside Tasks.
	ErrUnknownTask = errors.New("unknown task")

	// ErrMissingRequest is returned for an architecture task without a request.
	ErrMissingRequest = errors.New("missing user request")

	// ErrNoCheckpointStore is returned by Resume without a checkpoint store.
	ErrNoCheckpointStore = errors.New("no checkpoint store configured")
)

// Clients resolves model clients for a provider configuration.
// *provider.Factory implements it.
type Clients interface {
	Check(cfg provider.Config) error
	Model(cfg provider.Config, tier provider.Tier) (string, error)
	Client(cfg provider.Config, tier provider.Tier) (llm.Client, error)
}

// Deps are the collaborators of the agents. Clients is required.
type Deps struct {
	Clients   Clients
	Knowledge knowledge.Searcher
	Renderer  tools.DiagramRenderer
	Writer    tools.ScaffoldWriter
}

type config struct {
	maxRefinementRetries  int
	maxDiagramFixes       int
	diagramsAfterApproval bool
	logger                *slog.Logger
	metrics               observability.MetricsRecorder
	tracing               bool
	checkpoints           checkpoint.Store
}

// Option configures a Pipeline.
type Option func(*config)

// WithMaxRefinementRetries sets K. Negative values are ignored.
func WithMaxRefinementRetries(k int) Option {
	return func(c *config) {
		if k >= 0 {
			c.maxRefinementRetries = k
		}
	}
}

// WithMaxDiagramFixes bounds the diagram fix-up loop. Zero disables it.
func WithMaxDiagramFixes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxDiagramFixes = n
		}
	}
}

// WithDiagramsAfterApproval continues an approved architecture run into
// the diagrams path.
func WithDiagramsAfterApproval(enabled bool) Option {
	return func(c *config) { c.diagramsAfterApproval = enabled }
}

// WithLogger sets the logger handed to nodes and used for run lifecycle
// logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records node, run, token and verdict metrics through m.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans for runs, nodes and agent calls.
func WithTracing(enabled bool) Option {
	return func(c *config) { c.tracing = enabled }
}

// WithCheckpoints saves a checkpoint after every node of runs that have a
// run ID, and enables Resume.
func WithCheckpoints(store checkpoint.Store) Option {
	return func(c *config) { c.checkpoints = store }
}

// Pipeline runs the architecture graph. It holds no per-run state and is
// safe for concurrent runs.
type Pipeline struct {
	deps    Deps
	cfg     config
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	graph   *flowgraph.CompiledGraph[State]
}

// New compiles the pipeline graph.
func New(deps Deps, opts ...Option) (*Pipeline, error) {
	if deps.Clients == nil {
		return nil, errors.New("pipeline: Deps.Clients is required")
	}
	if deps.Knowledge == nil {
		deps.Knowledge = knowledge.Nop{}
	}
	if deps.Renderer == nil {
		deps.Renderer = tools.NewFileRenderer(DefaultOutputDir)
	}
	if deps.Writer == nil {
		deps.Writer = tools.NewDirWriter(DefaultOutputDir)
	}

	cfg := config{
		maxRefinementRetries: DefaultMaxRefinementRetries,
		maxDiagramFixes:      DefaultMaxDiagramFixes,
		logger:               slog.Default(),
		metrics:              observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pipeline{deps: deps, cfg: cfg, metrics: cfg.metrics, spans: observability.NoopSpanManager{}}
	if cfg.tracing {
		p.spans = observability.NewSpanManager()
	}

	graph, err := p.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("compile pipeline: %w", err)
	}
	p.graph = graph
	return p, nil
}

// MaxRefinementRetries returns K.
func (p *Pipeline) MaxRefinementRetries() int { return p.cfg.maxRefinementRetries }

type runSettings struct {
	runID  string
	apiKey string
}

// RunOption configures a single run.
type RunOption func(*runSettings)

// WithRunID names the run. Checkpoints are only written for named runs.
func WithRunID(id string) RunOption {
	return func(r *runSettings) { r.runID = id }
}

// WithAPIKey supplies the provider key when the state carries none, as
// is the case for restored states.
func WithAPIKey(key string) RunOption {
	return func(r *runSettings) { r.apiKey = key }
}

// Progress is reported by Stream after every node.
type Progress struct {
	Node   string
	Update Update
	State  State
}

// Validate checks a state before any node runs. It returns configuration
// errors: unknown task, missing input document, unknown provider or
// missing credentials.
func (p *Pipeline) Validate(s State) error {
	switch s.Task {
	case TaskArchitecture:
		if s.UserRequest == "" {
			return ErrMissingRequest
		}
	case TaskDiagrams:
		if s.HLD == nil {
			return fmt.Errorf("%w: the diagrams task needs a high-level design", ErrMissingDesign)
		}
	case TaskCode:
		if s.LLD == nil {
			return fmt.Errorf("%w: the code task needs a low-level design", ErrMissingDesign)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTask, s.Task)
	}
	return p.deps.Clients.Check(s.Provider)
}

// Run executes the graph from the task's entry node to the end. On a node
// failure the state at the failure point is returned with the error.
// Exhausting the refinement budget is not an error.
func (p *Pipeline) Run(ctx context.Context, s State, opts ...RunOption) (State, error) {
	fctx, s, graphOpts, err := p.prepare(ctx, s, opts)
	if err != nil {
		return s, err
	}
	return p.graph.Run(fctx, s, graphOpts...)
}

// Stream executes like Run and yields the update and resulting state of
// every node. A failed run ends with a pair carrying the error.
func (p *Pipeline) Stream(ctx context.Context, s State, opts ...RunOption) iter.Seq2[Progress, error] {
	return func(yield func(Progress, error) bool) {
		obs := &observer{}
		fctx, s, graphOpts, err := p.prepare(context.WithValue(ctx, observerKey{}, obs), s, opts)
		if err != nil {
			yield(Progress{State: s}, err)
			return
		}

		for step, err := range p.graph.Stream(fctx, s, graphOpts...) {
			if err != nil {
				yield(Progress{Node: step.NodeID, State: step.State}, err)
				return
			}
			u := obs.last
			obs.last = nil
			if !yield(Progress{Node: step.NodeID, Update: u, State: step.State}, nil) {
				return
			}
		}
	}
}

// Resume continues a checkpointed run from its latest checkpoint. The API
// key is not checkpointed and must be supplied with WithAPIKey unless the
// provider needs none.
func (p *Pipeline) Resume(ctx context.Context, runID string, opts ...RunOption) (State, error) {
	if p.cfg.checkpoints == nil {
		return State{}, ErrNoCheckpointStore
	}
	rs := runSettings{}
	for _, opt := range opts {
		opt(&rs)
	}

	fctx := flowgraph.NewContext(ctx, flowgraph.WithLogger(p.cfg.logger), flowgraph.WithContextRunID(runID))
	return p.graph.Resume(fctx, p.cfg.checkpoints, runID,
		flowgraph.WithStateOverride(func(v any) any {
			s := v.(State)
			if s.Provider.APIKey == "" {
				s.Provider.APIKey = rs.apiKey
			}
			return s
		}),
		flowgraph.WithStateValidation(func(v any) error {
			return p.deps.Clients.Check(v.(State).Provider)
		}),
		flowgraph.WithRunOptions(p.observabilityOptions()...),
	)
}

func (p *Pipeline) prepare(ctx context.Context, s State, opts []RunOption) (flowgraph.Context, State, []flowgraph.RunOption, error) {
	rs := runSettings{}
	for _, opt := range opts {
		opt(&rs)
	}
	if s.Provider.APIKey == "" {
		s.Provider.APIKey = rs.apiKey
	}
	if err := p.Validate(s); err != nil {
		return nil, s, nil, err
	}
	// Each run gets its own diagram fix budget.
	s.DiagramPasses = 0

	ctxOpts := []flowgraph.ContextOption{flowgraph.WithLogger(p.cfg.logger)}
	graphOpts := p.observabilityOptions()
	if rs.runID != "" {
		ctxOpts = append(ctxOpts, flowgraph.WithContextRunID(rs.runID))
		graphOpts = append(graphOpts, flowgraph.WithRunID(rs.runID))
		if p.cfg.checkpoints != nil {
			graphOpts = append(graphOpts, flowgraph.WithCheckpointing(p.cfg.checkpoints))
		}
	}
	return flowgraph.NewContext(ctx, ctxOpts...), s, graphOpts, nil
}

// maxNodeRuns is the longest possible run: manager, security and team lead,
// K+1 judge and K refiner passes, the visuals fix-up passes and the diagram
// validator.
func (p *Pipeline) maxNodeRuns() int {
	k := p.cfg.maxRefinementRetries
	return 3 + (k + 1) + k + (p.cfg.maxDiagramFixes + 1) + 1
}

func (p *Pipeline) observabilityOptions() []flowgraph.RunOption {
	return []flowgraph.RunOption{
		flowgraph.WithMaxIterations(p.maxNodeRuns()),
		flowgraph.WithGraphName("archflow"),
		flowgraph.WithObservabilityLogger(p.cfg.logger),
		flowgraph.WithMetricsRecorder(p.metrics),
		flowgraph.WithTracing(p.cfg.tracing),
	}
}

type observerKey struct{}

// observer receives the update of the node that just ran during Stream.
type observer struct {
	last Update
}
