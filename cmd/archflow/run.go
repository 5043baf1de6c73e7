package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/archflow/internal/pipeline"
	"github.com/randalmurphal/archflow/internal/provider"
	"github.com/randalmurphal/archflow/internal/report"
)

type runFlags struct {
	task                  string
	request               string
	requestFile           string
	provider              string
	feedback              string
	save                  string
	stream                bool
	fromSnapshot          string
	resume                string
	runID                 string
	maxRetries            int
	diagramsAfterApproval bool
}

func newRunCmd(a *app) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent pipeline",
		Long: `Runs one task through the agent pipeline.

  architecture  Manager, Security, Team Lead and Judge with refinement (needs a request)
  diagrams      Visual Architect and Diagram Validator (needs an HLD, use --from-snapshot)
  code          Scaffolder (needs an LLD, use --from-snapshot)

With checkpoint_db configured, every node is checkpointed under the run ID
and a failed run can be continued with --resume <run-id>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.task, "task", string(pipeline.TaskArchitecture), "Task: architecture, diagrams or code")
	f.StringVarP(&flags.request, "request", "r", "", "Product or system description")
	f.StringVarP(&flags.requestFile, "request-file", "f", "", "Read the request from a file, - for stdin")
	f.StringVarP(&flags.provider, "provider", "p", "", "LLM provider (default from config)")
	f.StringVar(&flags.feedback, "feedback", "", "Feedback for the manager to address")
	f.StringVarP(&flags.save, "save", "s", "", "Save the result as a snapshot under this project name")
	f.BoolVar(&flags.stream, "stream", false, "Print agent progress as each node finishes")
	f.StringVar(&flags.fromSnapshot, "from-snapshot", "", "Start from a saved snapshot")
	f.StringVar(&flags.resume, "resume", "", "Resume a checkpointed run by run ID")
	f.StringVar(&flags.runID, "run-id", "", "Run ID for checkpoints (default: random)")
	f.IntVar(&flags.maxRetries, "max-retries", 0, "Refinement budget K (default from config)")
	f.BoolVar(&flags.diagramsAfterApproval, "diagrams-after-approval", false, "Continue an approved architecture into diagrams")

	cmd.MarkFlagsMutuallyExclusive("request", "request-file")
	cmd.MarkFlagsMutuallyExclusive("resume", "from-snapshot")
	return cmd
}

func (a *app) run(cmd *cobra.Command, flags runFlags) error {
	ctx := cmd.Context()
	settings := a.settings
	if cmd.Flags().Changed("max-retries") {
		settings.MaxRefinementRetries = flags.maxRetries
	}
	if cmd.Flags().Changed("diagrams-after-approval") {
		settings.DiagramsAfterApproval = flags.diagramsAfterApproval
	}
	if settings.MaxRefinementRetries < 0 {
		return fmt.Errorf("--max-retries must be >= 0")
	}

	p, cl, err := a.buildPipeline(settings)
	if err != nil {
		return err
	}
	defer cl.Close()

	printer := report.NewPrinter(cmd.OutOrStdout())
	cfg := a.providerConfig(flags.provider)

	var final pipeline.State
	if flags.resume != "" {
		a.logger.Info("resuming run", "run_id", flags.resume)
		final, err = p.Resume(ctx, flags.resume, pipeline.WithAPIKey(cfg.APIKey))
		printer.Logs(final)
	} else {
		var s pipeline.State
		s, err = a.initialState(ctx, flags, cfg)
		if err != nil {
			return err
		}
		runID := flags.runID
		if runID == "" {
			runID = uuid.NewString()
		}
		a.logger.Info("starting run", "run_id", runID, "task", s.Task, "provider", cfg.Name)
		final, err = a.execute(ctx, p, printer, s, runID, flags.stream)
		if err != nil && settings.CheckpointDB != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Resume with: archflow run --resume %s\n", runID)
		}
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printer.Summary(final)

	if flags.save != "" {
		store, err := a.openSnapshots()
		if err != nil {
			return err
		}
		defer store.Close()
		name, err := store.Save(ctx, flags.save, final)
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved snapshot %s\n", name)
	}
	return nil
}

func (a *app) initialState(ctx context.Context, flags runFlags, cfg provider.Config) (pipeline.State, error) {
	task, err := pipeline.ParseTask(flags.task)
	if err != nil {
		return pipeline.State{}, err
	}
	request, err := a.readRequest(flags.request, flags.requestFile)
	if err != nil {
		return pipeline.State{}, err
	}

	s := pipeline.NewState(task, request, cfg)
	if flags.fromSnapshot != "" {
		store, err := a.openSnapshots()
		if err != nil {
			return pipeline.State{}, err
		}
		defer store.Close()
		prev, err := store.Load(ctx, flags.fromSnapshot)
		if err != nil {
			return pipeline.State{}, err
		}
		prev = prev.Restart(task, cfg)
		if request != "" {
			prev.UserRequest = request
		}
		s = prev
	}
	s.Feedback = flags.feedback
	return s, nil
}

func (a *app) execute(ctx context.Context, p *pipeline.Pipeline, printer *report.Printer, s pipeline.State, runID string, stream bool) (pipeline.State, error) {
	if !stream {
		final, err := p.Run(ctx, s, pipeline.WithRunID(runID))
		printer.Logs(final)
		return final, err
	}

	final := s
	for pr, err := range p.Stream(ctx, s, pipeline.WithRunID(runID)) {
		final = pr.State
		if err != nil {
			return final, err
		}
		printer.Progress(pr)
	}
	return final, nil
}
