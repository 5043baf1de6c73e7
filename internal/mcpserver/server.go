// Package mcpserver exposes the architecture pipeline and the snapshot
// store as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/randalmurphal/archflow/internal/usage"
)

const (
	// ServerName is the MCP implementation name.
	ServerName = "archflow"

	// DefaultSessionTimeout closes idle HTTP sessions.
	DefaultSessionTimeout = 30 * time.Minute
)

// ServerInstructions is sent to clients on initialize.
const ServerInstructions = `archflow turns a product description into a reviewed software architecture.

Tools:
- generate_architecture: run the Manager, Security, Team Lead and Judge agents with bounded refinement. Use task=diagrams or task=code with from_snapshot to continue a saved design.
- list_snapshots, load_snapshot, delete_snapshot: manage saved runs
- estimate_cost: project tokens and cost before running

Runs take minutes and call the configured LLM provider several times.`

// Server wraps an MCP server with the archflow tools registered.
type Server struct {
	MCPServer *mcp.Server
	logger    *slog.Logger
	timeout   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionTimeout sets the idle timeout of HTTP sessions.
func WithSessionTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// NewServer registers the tools backed by h.
func NewServer(h *Handlers, version string, opts ...Option) *Server {
	s := &Server{logger: slog.Default(), timeout: DefaultSessionTimeout}
	for _, opt := range opts {
		opt(s)
	}

	s.MCPServer = mcp.NewServer(
		&mcp.Implementation{Name: ServerName, Version: version},
		&mcp.ServerOptions{Instructions: ServerInstructions, Logger: s.logger},
	)
	registerTools(s.MCPServer, h)
	return s
}

// ServeStdio serves one client over stdin and stdout until ctx ends or the
// client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.MCPServer.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler with a health endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.MCPServer
	}, &mcp.StreamableHTTPOptions{SessionTimeout: s.timeout, Logger: s.logger}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"status":"ok"}`)
	})
	return mux
}

// ServeHTTP serves streamable HTTP on addr until ctx ends.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		errCh <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("serving MCP over HTTP", "addr", addr, "endpoint", "/mcp")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-errCh
}

func boolPtr(b bool) *bool {
	return &b
}

func registerTools(server *mcp.Server, h *Handlers) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "generate_architecture",
			Description: "Design a software architecture for a request: high-level design, security review, low-level design and a judge verdict, refined until approved or the retry budget runs out.",
			Annotations: &mcp.ToolAnnotations{
				Title:           "Generate Architecture",
				DestructiveHint: boolPtr(false),
				OpenWorldHint:   boolPtr(true),
			},
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, in GenerateInput) (*mcp.CallToolResult, GenerateOutput, error) {
			out, err := h.GenerateArchitecture(ctx, in)
			return nil, out, err
		},
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_snapshots",
			Description: "List saved architecture runs, newest first.",
			Annotations: &mcp.ToolAnnotations{
				Title:          "List Snapshots",
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
			},
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, in ListSnapshotsInput) (*mcp.CallToolResult, ListSnapshotsOutput, error) {
			out, err := h.ListSnapshots(ctx, in)
			return nil, out, err
		},
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "load_snapshot",
			Description: "Load a saved run and render its designs as markdown.",
			Annotations: &mcp.ToolAnnotations{
				Title:          "Load Snapshot",
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
			},
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, in SnapshotInput) (*mcp.CallToolResult, LoadSnapshotOutput, error) {
			out, err := h.LoadSnapshot(ctx, in)
			return nil, out, err
		},
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "delete_snapshot",
			Description: "Delete a saved run.",
			Annotations: &mcp.ToolAnnotations{
				Title:           "Delete Snapshot",
				DestructiveHint: boolPtr(true),
				IdempotentHint:  true,
				OpenWorldHint:   boolPtr(false),
			},
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, in SnapshotInput) (*mcp.CallToolResult, DeleteSnapshotOutput, error) {
			out, err := h.DeleteSnapshot(ctx, in)
			return nil, out, err
		},
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "estimate_cost",
			Description: "Estimate the tokens and USD cost of one architecture run before starting it.",
			Annotations: &mcp.ToolAnnotations{
				Title:          "Estimate Cost",
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
			},
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, in EstimateInput) (*mcp.CallToolResult, usage.Estimate, error) {
			out, err := h.EstimateCost(ctx, in)
			return nil, out, err
		},
	)
}
