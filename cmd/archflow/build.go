package main

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/archflow/internal/config"
	"github.com/randalmurphal/archflow/internal/knowledge"
	"github.com/randalmurphal/archflow/internal/pipeline"
	"github.com/randalmurphal/archflow/internal/snapshot"
	"github.com/randalmurphal/archflow/internal/tools"
	"github.com/randalmurphal/archflow/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/archflow/pkg/flowgraph/observability"
)

// closers closes resources in reverse order of opening.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

// buildPipeline wires the pipeline from settings. The returned closers
// must be closed when the pipeline is no longer used.
func (a *app) buildPipeline(s config.Settings) (*pipeline.Pipeline, closers, error) {
	var cl closers

	deps := pipeline.Deps{
		Clients: a.newClients(s, a.logger),
		Writer:  tools.NewDirWriter(s.OutputDir),
	}

	var sources []knowledge.Source
	if s.WebSearch {
		sources = append(sources, knowledge.Source{Name: "Web search", Searcher: knowledge.NewWeb()})
	}
	if s.KnowledgeDB != "" {
		kb, err := knowledge.Open(s.KnowledgeDB)
		if err != nil {
			return nil, cl, fmt.Errorf("open knowledge base: %w", err)
		}
		cl.add(kb.Close)
		sources = append(sources, knowledge.Source{Name: "Knowledge base", Searcher: kb})
	}
	if len(sources) > 0 {
		deps.Knowledge = knowledge.Combine(a.logger, sources...)
	}

	renderOpts := []tools.RendererOption{tools.WithRenderLogger(a.logger)}
	if s.ValidateDiagrams {
		bv := tools.NewBrowserValidator()
		cl.add(bv.Close)
		renderOpts = append(renderOpts, tools.WithValidator(bv))
	}
	deps.Renderer = tools.NewMermaidRenderer(s.OutputDir, renderOpts...)

	opts := []pipeline.Option{
		pipeline.WithMaxRefinementRetries(s.MaxRefinementRetries),
		pipeline.WithMaxDiagramFixes(s.MaxDiagramFixes),
		pipeline.WithDiagramsAfterApproval(s.DiagramsAfterApproval),
		pipeline.WithLogger(a.logger),
		pipeline.WithMetrics(observability.NewMetricsRecorder()),
		pipeline.WithTracing(true),
	}
	if s.CheckpointDB != "" {
		store, err := checkpoint.NewSQLiteStore(s.CheckpointDB)
		if err != nil {
			_ = cl.Close()
			return nil, nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		cl.add(store.Close)
		opts = append(opts, pipeline.WithCheckpoints(store))
	}

	p, err := pipeline.New(deps, opts...)
	if err != nil {
		_ = cl.Close()
		return nil, nil, err
	}
	return p, cl, nil
}

func (a *app) openSnapshots() (snapshot.Store, error) {
	store, err := snapshot.Open(a.settings)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return store, nil
}
