package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/archflow/internal/design"
	"github.com/randalmurphal/archflow/internal/report"
	"github.com/randalmurphal/archflow/internal/usage"
)

func newSnapshotsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshots",
		Aliases: []string{"snapshot"},
		Short:   "Manage saved runs",
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Show the log and summary of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openSnapshots()
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			p := report.NewPrinter(cmd.OutOrStdout())
			p.Logs(s)
			p.Summary(s)
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "Print the stored state as JSON")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List snapshots, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := a.openSnapshots()
				if err != nil {
					return err
				}
				defer store.Close()

				names, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				report.NewPrinter(cmd.OutOrStdout()).Snapshots(names)
				return nil
			},
		},
		show,
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openSnapshots()
				if err != nil {
					return err
				}
				defer store.Close()

				ok, err := store.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("snapshot %q does not exist", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var output, title string
	cmd := &cobra.Command{
		Use:   "export <snapshot>",
		Short: "Export a snapshot's designs as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openSnapshots()
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if title == "" {
				title = args[0]
			}
			md := design.RenderMarkdown(design.Report{
				Title:    title,
				HLD:      s.HLD,
				LLD:      s.LLD,
				Verdict:  s.Verdict,
				Diagrams: s.Diagrams,
			})

			if output == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), md)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			if err := os.WriteFile(output, []byte(md), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().StringVar(&title, "title", "", "Document title (default: snapshot name)")
	return cmd
}

func newEstimateCmd(a *app) *cobra.Command {
	var request, requestFile, providerName string
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate tokens and cost of one architecture run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := a.readRequest(request, requestFile)
			if err != nil {
				return err
			}
			if text == "" {
				return fmt.Errorf("a request is required: use --request or --request-file")
			}
			cfg := a.providerConfig(providerName)
			report.NewPrinter(cmd.OutOrStdout()).Estimate(usage.EstimateRun(cfg.Name, text))
			return nil
		},
	}
	cmd.Flags().StringVarP(&request, "request", "r", "", "Product or system description")
	cmd.Flags().StringVarP(&requestFile, "request-file", "f", "", "Read the request from a file, - for stdin")
	cmd.Flags().StringVarP(&providerName, "provider", "p", "", "LLM provider (default from config)")
	return cmd
}
