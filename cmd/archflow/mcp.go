package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/archflow/internal/logging"
	"github.com/randalmurphal/archflow/internal/mcpserver"
)

func newMCPCmd(a *app) *cobra.Command {
	var transport, addr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pipeline as MCP tools",
		Long: `Starts an MCP server exposing generate_architecture, list_snapshots,
load_snapshot, delete_snapshot and estimate_cost.

The stdio transport serves one client over stdin and stdout; logs go to
stderr. The http transport serves streamable HTTP at /mcp.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, cl, err := a.buildPipeline(a.settings)
			if err != nil {
				return err
			}
			defer cl.Close()

			store, err := a.openSnapshots()
			if err != nil {
				return err
			}
			defer store.Close()

			logger := logging.New("mcp")
			h := mcpserver.NewHandlers(p, store, a.settings).WithLogger(logger)
			srv := mcpserver.NewServer(h, version, mcpserver.WithLogger(logger))

			switch transport {
			case "stdio":
				return srv.ServeStdio(cmd.Context())
			case "http":
				return srv.ServeHTTP(cmd.Context(), addr)
			default:
				return fmt.Errorf("unknown transport %q: use stdio or http", transport)
			}
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio or http")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address for the http transport")
	return cmd
}
