// archflow designs software architectures with a team of LLM agents.
//
// Usage:
//
//	archflow run --request "Design a URL shortener" [--stream] [--save shortener]
//	archflow run --task diagrams --from-snapshot shortener_1700000000
//	archflow snapshots list|show|delete
//	archflow export <snapshot> [-o design.md]
//	archflow estimate --request-file prd.md
//	archflow kb ingest docs/ | kb search "rate limiting"
//	archflow mcp [--transport http --addr :8080]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
