package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/archflow/internal/knowledge"
)

func newKBCmd(a *app) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the knowledge base the manager consults",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Knowledge base path (default: knowledge_db from config)")

	open := func() (*knowledge.Store, error) {
		path := dbPath
		if path == "" {
			path = a.settings.KnowledgeDB
		}
		if path == "" {
			return nil, fmt.Errorf("no knowledge base: set knowledge_db or pass --db")
		}
		return knowledge.Open(path)
	}

	ingest := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Index documents or directories of documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := open()
			if err != nil {
				return err
			}
			defer kb.Close()

			var total knowledge.IngestReport
			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return err
				}
				if info.IsDir() {
					r, err := kb.IngestDir(cmd.Context(), path)
					if err != nil {
						return err
					}
					total.Files += r.Files
					total.Chunks += r.Chunks
					continue
				}
				n, err := kb.IngestFile(cmd.Context(), path)
				if err != nil {
					return err
				}
				total.Files++
				total.Chunks += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks from %d files\n", total.Chunks, total.Files)
			return nil
		},
	}

	var limit int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := open()
			if err != nil {
				return err
			}
			defer kb.Close()

			hits, err := kb.Query(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintln(out, "No matches.")
				return nil
			}
			for _, h := range hits {
				fmt.Fprintf(out, "== %s\n%s\n\n", h.Source, strings.TrimSpace(h.Content))
			}
			return nil
		},
	}
	search.Flags().IntVarP(&limit, "limit", "n", knowledge.DefaultResults, "Maximum number of chunks")

	cmd.AddCommand(ingest, search)
	return cmd
}
