// Package observability carries the logging, metrics and tracing hooks used
// by the graph engine and the archflow pipeline.
//
// Logging goes through log/slog; metrics and spans go through the global
// OpenTelemetry providers. Every hook has a no-op form so a disabled concern
// costs nothing on the hot path.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run and node attributes to a logger.
//
// Example:
//
//	log := EnrichLogger(logger, "run-123", "judge", 1)
//	log.Info("verdict parsed") // carries run_id, node_id, attempt
func EnrichLogger(logger *slog.Logger, runID, nodeID string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
	)
}

// LogRunStart logs the start of a graph run.
func LogRunStart(logger *slog.Logger, runID string) {
	if logger == nil {
		return
	}
	logger.Info("run starting", slog.String("run_id", runID))
}

// LogRunComplete logs a successful run.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount),
	)
}

// LogRunError logs a failed run and the node it failed at.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting", slog.String("node_id", nodeID))
}

// LogNodeComplete logs node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs a node failure.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogCheckpoint logs a saved checkpoint.
func LogCheckpoint(logger *slog.Logger, nodeID string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("node_id", nodeID),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogCheckpointError logs a non-fatal checkpoint failure.
func LogCheckpointError(logger *slog.Logger, nodeID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("node_id", nodeID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogAgentCall logs one completed model call made by an agent.
func LogAgentCall(logger *slog.Logger, role, model string, promptTokens, completionTokens int, d time.Duration) {
	if logger == nil {
		return
	}
	logger.Info("agent call completed",
		slog.String("role", role),
		slog.String("model", model),
		slog.Int("prompt_tokens", promptTokens),
		slog.Int("completion_tokens", completionTokens),
		slog.Float64("duration_ms", float64(d.Milliseconds())),
	)
}

// LogVerdict logs a review decision and the retry count it produced.
func LogVerdict(logger *slog.Logger, approved bool, retryCount int, outcome string) {
	if logger == nil {
		return
	}
	logger.Info("design reviewed",
		slog.Bool("approved", approved),
		slog.Int("retry_count", retryCount),
		slog.String("outcome", outcome),
	)
}

// TimedOperation returns a func reporting elapsed milliseconds since the call.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
