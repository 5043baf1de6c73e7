package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/archflow/internal/design"
)

// RenderResult is the outcome of rendering one diagram. Error is set
// instead of Path when rendering failed.
type RenderResult struct {
	Path  string
	Error string
}

// DiagramRenderer turns Mermaid code into an artifact on disk.
type DiagramRenderer interface {
	Render(ctx context.Context, kind design.DiagramKind, code string) RenderResult
}

// SyntaxValidator checks Mermaid code with a real parser. A non-empty
// return is the parser's message.
type SyntaxValidator interface {
	Validate(ctx context.Context, code string) (string, error)
}

// MermaidRenderer writes <dir>/<kind>.mmd, or <dir>/<run>/<kind>.mmd under
// WithRunDir, after checking the code. The static check always runs; the
// validator runs when one is set.
type MermaidRenderer struct {
	dir       string
	validator SyntaxValidator
	logger    *slog.Logger
}

// RendererOption configures MermaidRenderer.
type RendererOption func(*MermaidRenderer)

// WithValidator sets the parser used after the static check.
func WithValidator(v SyntaxValidator) RendererOption {
	return func(r *MermaidRenderer) { r.validator = v }
}

// WithRenderLogger sets the logger.
func WithRenderLogger(l *slog.Logger) RendererOption {
	return func(r *MermaidRenderer) { r.logger = l }
}

// NewMermaidRenderer creates a renderer writing into dir.
func NewMermaidRenderer(dir string, opts ...RendererOption) *MermaidRenderer {
	r := &MermaidRenderer{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFileRenderer creates a renderer that only runs the static check.
func NewFileRenderer(dir string) *MermaidRenderer {
	return NewMermaidRenderer(dir)
}

// Dir returns the output root.
func (r *MermaidRenderer) Dir() string { return r.dir }

// Render implements DiagramRenderer.
func (r *MermaidRenderer) Render(ctx context.Context, kind design.DiagramKind, code string) RenderResult {
	if err := ctx.Err(); err != nil {
		return RenderResult{Error: err.Error()}
	}
	if err := CheckSyntax(code); err != nil {
		return RenderResult{Error: "Syntax error in Mermaid code: " + err.Error()}
	}
	if r.validator != nil {
		msg, err := r.validator.Validate(ctx, code)
		if err != nil {
			// No browser is not a diagram defect; keep the file.
			r.logger.Warn("mermaid validation unavailable", "kind", kind, "error", err)
		} else if msg != "" {
			return RenderResult{Error: "Syntax error in Mermaid code: " + msg}
		}
	}

	dir := scoped(ctx, r.dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return RenderResult{Error: fmt.Sprintf("create diagram dir: %v", err)}
	}
	path := filepath.Join(dir, string(kind)+".mmd")
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return RenderResult{Error: fmt.Sprintf("write diagram: %v", err)}
	}
	r.logger.Debug("diagram rendered", "kind", kind, "path", path)
	return RenderResult{Path: path}
}

// maxConcurrentRenders bounds RenderAll. Each browser validation holds a
// tab open.
const maxConcurrentRenders = 3

// RenderAll renders every kind in design.DiagramKinds concurrently and
// returns the diagrams in that order. Kinds with empty code are skipped.
func RenderAll(ctx context.Context, r DiagramRenderer, code design.DiagramCode) []design.Diagram {
	var kinds []design.DiagramKind
	for _, k := range design.DiagramKinds {
		if code.Get(k) != "" {
			kinds = append(kinds, k)
		}
	}

	out := make([]design.Diagram, len(kinds))
	var g errgroup.Group
	g.SetLimit(maxConcurrentRenders)
	for i, kind := range kinds {
		g.Go(func() error {
			src := code.Get(kind)
			res := r.Render(ctx, kind, src)
			out[i] = design.Diagram{Kind: kind, Code: src, Path: res.Path, RenderError: res.Error}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
