package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/randalmurphal/archflow/internal/design"
)

// AppDir is the directory under the output root that receives the scaffold.
const AppDir = "generated_app"

// ScaffoldWriter materializes a scaffold and returns one log line per file.
type ScaffoldWriter interface {
	Write(ctx context.Context, spec design.ScaffoldSpec) []string
}

// DirWriter writes scaffold files under <root>/generated_app, or
// <root>/<run>/generated_app under WithRunDir. Filenames that are absolute
// or escape that directory are rejected.
type DirWriter struct {
	root string
}

// NewDirWriter creates a writer rooted at outputDir.
func NewDirWriter(outputDir string) *DirWriter {
	return &DirWriter{root: outputDir}
}

// Dir returns the directory files are written to for calls made with ctx.
func (w *DirWriter) Dir(ctx context.Context) string {
	return filepath.Join(scoped(ctx, w.root), AppDir)
}

// Write implements ScaffoldWriter.
func (w *DirWriter) Write(ctx context.Context, spec design.ScaffoldSpec) []string {
	start := time.Now()
	base := w.Dir(ctx)
	var log []string

	if err := os.MkdirAll(base, 0o755); err != nil {
		return append(log, fmt.Sprintf("Failed to create %s: %v", base, err))
	}

	for _, f := range spec.Files {
		if err := ctx.Err(); err != nil {
			log = append(log, fmt.Sprintf("Stopped: %v", err))
			break
		}
		name := filepath.FromSlash(f.Filename)
		if !filepath.IsLocal(name) {
			log = append(log, fmt.Sprintf("Rejected %s: path escapes %s", f.Filename, AppDir))
			continue
		}
		path := filepath.Join(base, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			log = append(log, fmt.Sprintf("Failed %s: %v", f.Filename, err))
			continue
		}
		if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
			log = append(log, fmt.Sprintf("Failed %s: %v", f.Filename, err))
			continue
		}
		log = append(log, "Created "+filepath.ToSlash(filepath.Join(AppDir, name)))
	}

	return append(log, fmt.Sprintf("Scaffolding complete in %s (%s)", base, time.Since(start).Round(time.Millisecond)))
}
