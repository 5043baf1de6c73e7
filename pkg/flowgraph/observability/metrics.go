package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName scopes every instrument this package creates.
const meterName = "archflow"

// MetricsRecorder records engine and pipeline metrics.
// Use NewMetricsRecorder for OpenTelemetry or NoopMetrics when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordGraphRun records a finished run.
	RecordGraphRun(ctx context.Context, success bool, duration time.Duration)

	// RecordCheckpoint records a checkpoint save.
	RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64)

	// RecordTokens records model token usage attributed to an agent role.
	RecordTokens(ctx context.Context, role string, promptTokens, completionTokens int)

	// RecordVerdict records a review outcome.
	RecordVerdict(ctx context.Context, outcome string, retryCount int)
}

type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
	checkpointSize metric.Int64Histogram
	tokens         metric.Int64Counter
	verdicts       metric.Int64Counter
	retries        metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter(meterName)
	m := &otelMetrics{}
	var err error

	if m.nodeExecutions, err = meter.Int64Counter("archflow.node.executions",
		metric.WithDescription("Number of node executions"),
	); err != nil {
		return nil, err
	}
	if m.nodeLatency, err = meter.Float64Histogram("archflow.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.nodeErrors, err = meter.Int64Counter("archflow.node.errors",
		metric.WithDescription("Number of node execution errors"),
	); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64Counter("archflow.runs",
		metric.WithDescription("Number of pipeline runs"),
	); err != nil {
		return nil, err
	}
	if m.runLatency, err = meter.Float64Histogram("archflow.run.latency_ms",
		metric.WithDescription("Run latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.checkpointSize, err = meter.Int64Histogram("archflow.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.tokens, err = meter.Int64Counter("archflow.llm.tokens",
		metric.WithDescription("Model tokens consumed"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, err
	}
	if m.verdicts, err = meter.Int64Counter("archflow.review.verdicts",
		metric.WithDescription("Number of review verdicts by outcome"),
	); err != nil {
		return nil, err
	}
	if m.retries, err = meter.Int64Histogram("archflow.review.retry_count",
		metric.WithDescription("Retry count at each verdict"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global
// OpenTelemetry meter provider. Set the provider before calling it.
// If instrument creation fails, a no-op recorder is returned.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node_id", nodeID))

	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordGraphRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("node_id", nodeID)))
}

func (m *otelMetrics) RecordTokens(ctx context.Context, role string, promptTokens, completionTokens int) {
	m.tokens.Add(ctx, int64(promptTokens), metric.WithAttributes(
		attribute.String("role", role), attribute.String("kind", "prompt")))
	m.tokens.Add(ctx, int64(completionTokens), metric.WithAttributes(
		attribute.String("role", role), attribute.String("kind", "completion")))
}

func (m *otelMetrics) RecordVerdict(ctx context.Context, outcome string, retryCount int) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.verdicts.Add(ctx, 1, attrs)
	m.retries.Record(ctx, int64(retryCount), attrs)
}
