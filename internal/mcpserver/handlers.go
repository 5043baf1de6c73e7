package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/randalmurphal/archflow/internal/config"
	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/pipeline"
	"github.com/randalmurphal/archflow/internal/provider"
	"github.com/randalmurphal/archflow/internal/snapshot"
	"github.com/randalmurphal/archflow/internal/usage"
)

// ErrNoSnapshots is returned by snapshot tools when no store is configured.
var ErrNoSnapshots = errors.New("snapshot storage is not configured")

// Handlers implements the tools on top of a pipeline and a snapshot store.
type Handlers struct {
	pipeline  *pipeline.Pipeline
	snapshots snapshot.Store
	settings  config.Settings
	logger    *slog.Logger
}

// NewHandlers creates handlers. store may be nil, which disables the
// snapshot tools and the save and from_snapshot inputs.
func NewHandlers(p *pipeline.Pipeline, store snapshot.Store, settings config.Settings) *Handlers {
	return &Handlers{pipeline: p, snapshots: store, settings: settings, logger: slog.Default()}
}

// WithLogger sets the handler logger.
func (h *Handlers) WithLogger(logger *slog.Logger) *Handlers {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *Handlers) providerConfig(name string) provider.Config {
	cfg := provider.Config{Name: h.settings.Provider, BaseURL: h.settings.BaseURL, ModelOverride: h.settings.Model}
	if name != "" && !strings.EqualFold(name, cfg.Name) {
		cfg = provider.Config{Name: name}
	}
	cfg.APIKey = h.settings.APIKey(cfg.Name)
	return cfg
}

// GenerateArchitecture runs the pipeline for one request.
func (h *Handlers) GenerateArchitecture(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	task := pipeline.TaskArchitecture
	if in.Task != "" {
		t, err := pipeline.ParseTask(in.Task)
		if err != nil {
			return GenerateOutput{}, err
		}
		task = t
	}

	s := pipeline.NewState(task, strings.TrimSpace(in.Request), h.providerConfig(in.Provider))
	if in.FromSnapshot != "" {
		if h.snapshots == nil {
			return GenerateOutput{}, ErrNoSnapshots
		}
		prev, err := h.snapshots.Load(ctx, in.FromSnapshot)
		if err != nil {
			return GenerateOutput{}, err
		}
		prev = prev.Restart(task, s.Provider)
		if s.UserRequest != "" {
			prev.UserRequest = s.UserRequest
		}
		s = prev
	}
	s.Feedback = in.Feedback
	if in.Save != "" && h.snapshots == nil {
		return GenerateOutput{}, ErrNoSnapshots
	}

	runID := uuid.NewString()
	h.logger.Info("generate_architecture started", "run_id", runID, "task", task, "provider", s.Provider.Name)
	final, err := h.pipeline.Run(ctx, s, pipeline.WithRunID(runID))
	if err != nil {
		h.logger.Error("generate_architecture failed", "run_id", runID, "error", err)
		return GenerateOutput{}, err
	}

	out := GenerateOutput{
		RunID:       runID,
		Task:        string(final.Task),
		Approved:    final.Approved(),
		Evaluations: final.RetryCount,
		HLD:         final.HLD,
		LLD:         final.LLD,
		Scaffold:    final.Scaffold,
		Logs:        logLines(final.Logs),
		TotalTokens: final.TotalTokens,
		Cost:        final.Cost(),
	}
	if final.Verdict != nil {
		out.Verdict = final.Verdict.Summary()
	}
	if final.Diagrams != nil {
		out.Diagrams = final.Diagrams.Diagrams
	}

	if in.Save != "" {
		name, err := h.snapshots.Save(ctx, in.Save, final)
		if err != nil {
			return out, fmt.Errorf("save snapshot: %w", err)
		}
		out.Snapshot = name
	}
	return out, nil
}

// ListSnapshots lists stored snapshots, newest first.
func (h *Handlers) ListSnapshots(ctx context.Context, _ ListSnapshotsInput) (ListSnapshotsOutput, error) {
	if h.snapshots == nil {
		return ListSnapshotsOutput{}, ErrNoSnapshots
	}
	names, err := h.snapshots.List(ctx)
	if err != nil {
		return ListSnapshotsOutput{}, err
	}
	if names == nil {
		names = []string{}
	}
	return ListSnapshotsOutput{Snapshots: names}, nil
}

// LoadSnapshot returns a stored run with its designs rendered as markdown.
func (h *Handlers) LoadSnapshot(ctx context.Context, in SnapshotInput) (LoadSnapshotOutput, error) {
	if h.snapshots == nil {
		return LoadSnapshotOutput{}, ErrNoSnapshots
	}
	s, err := h.snapshots.Load(ctx, in.Name)
	if err != nil {
		return LoadSnapshotOutput{}, err
	}
	return LoadSnapshotOutput{
		Name:        in.Name,
		Task:        string(s.Task),
		Request:     s.UserRequest,
		Approved:    s.Approved(),
		Evaluations: s.RetryCount,
		TotalTokens: s.TotalTokens,
		Cost:        s.Cost(),
		Markdown: design.RenderMarkdown(design.Report{
			Title:    in.Name,
			HLD:      s.HLD,
			LLD:      s.LLD,
			Verdict:  s.Verdict,
			Diagrams: s.Diagrams,
		}),
	}, nil
}

// DeleteSnapshot removes a snapshot.
func (h *Handlers) DeleteSnapshot(ctx context.Context, in SnapshotInput) (DeleteSnapshotOutput, error) {
	if h.snapshots == nil {
		return DeleteSnapshotOutput{}, ErrNoSnapshots
	}
	ok, err := h.snapshots.Delete(ctx, in.Name)
	if err != nil {
		return DeleteSnapshotOutput{}, err
	}
	return DeleteSnapshotOutput{Deleted: ok}, nil
}

// EstimateCost projects the tokens and cost of one architecture run.
func (h *Handlers) EstimateCost(_ context.Context, in EstimateInput) (usage.Estimate, error) {
	if strings.TrimSpace(in.Request) == "" {
		return usage.Estimate{}, errors.New("request is required")
	}
	name := in.Provider
	if name == "" {
		name = h.settings.Provider
	}
	return usage.EstimateRun(strings.ToLower(name), in.Request), nil
}
