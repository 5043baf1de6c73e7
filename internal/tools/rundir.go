package tools

import (
	"context"
	"path/filepath"
)

type runDirKey struct{}

// WithRunDir makes MermaidRenderer and DirWriter write under <root>/<name>
// for calls made with the returned context. Names that are not a single
// local path element are ignored.
func WithRunDir(ctx context.Context, name string) context.Context {
	if name == "" || !filepath.IsLocal(name) || filepath.Base(name) != name {
		return ctx
	}
	return context.WithValue(ctx, runDirKey{}, name)
}

// scoped joins root with the run directory carried by ctx, if any.
func scoped(ctx context.Context, root string) string {
	if name, ok := ctx.Value(runDirKey{}).(string); ok {
		return filepath.Join(root, name)
	}
	return root
}
