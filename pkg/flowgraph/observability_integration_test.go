package flowgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/randalmurphal/archflow/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/archflow/pkg/flowgraph/observability"
)

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		records = append(records, m)
	}
	return records
}

func messages(records []map[string]any) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r["msg"].(string))
	}
	return out
}

func TestObservability_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cg := mustCompile(NewGraph[Draft]().
		AddNode("write", visit("write")).
		AddEdge("write", END).
		SetEntry("write"))

	_, err := cg.Run(testCtx(), Draft{}, WithObservabilityLogger(logger), WithRunID("run-7"))
	require.NoError(t, err)

	records := decodeRecords(t, &buf)
	assert.Equal(t, []string{"run starting", "node starting", "node completed", "run completed"}, messages(records))
	assert.Equal(t, "run-7", records[0]["run_id"])
	assert.Equal(t, float64(1), records[3]["nodes_executed"])
}

func TestObservability_LoggingFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cg := mustCompile(NewGraph[Draft]().
		AddNode("judge", func(Context, Draft) (Draft, error) { return Draft{}, errors.New("bad verdict") }).
		AddEdge("judge", END).
		SetEntry("judge"))

	_, err := cg.Run(testCtx(), Draft{}, WithObservabilityLogger(logger))
	require.Error(t, err)

	records := decodeRecords(t, &buf)
	last := records[len(records)-1]
	assert.Equal(t, "run failed", last["msg"])
	assert.Equal(t, "judge", last["last_node"])
}

// recordingMetrics records calls so runs can be checked without an SDK.
type recordingMetrics struct {
	observability.NoopMetrics
	nodes       []string
	runs        []bool
	checkpoints int
}

func (m *recordingMetrics) RecordNodeExecution(_ context.Context, nodeID string, _ time.Duration, _ error) {
	m.nodes = append(m.nodes, nodeID)
}

func (m *recordingMetrics) RecordGraphRun(_ context.Context, success bool, _ time.Duration) {
	m.runs = append(m.runs, success)
}

func (m *recordingMetrics) RecordCheckpoint(context.Context, string, int64) {
	m.checkpoints++
}

func TestObservability_Metrics(t *testing.T) {
	rec := &recordingMetrics{}
	cg := mustCompile(reviewGraph(1, 3))

	_, err := cg.Run(testCtx(), Draft{},
		WithMetricsRecorder(rec),
		WithCheckpointing(checkpoint.NewMemoryStore()),
		WithRunID("run-1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"write", "review", "revise", "review"}, rec.nodes)
	assert.Equal(t, []bool{true}, rec.runs)
	assert.Equal(t, 4, rec.checkpoints)
}

func TestObservability_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	cg := mustCompile(reviewGraph(1, 3))
	_, err := cg.Run(testCtx(), Draft{}, WithTracing(true), WithGraphName("review"))
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 5)

	var names []string
	var runSpan tracetest.SpanStub
	for _, s := range spans {
		names = append(names, s.Name)
		if s.Name == "archflow.run" {
			runSpan = s
		}
	}
	assert.Contains(t, names, "archflow.node.revise")
	for _, s := range spans {
		if s.Name != "archflow.run" {
			assert.Equal(t, runSpan.SpanContext.SpanID(), s.Parent.SpanID(), s.Name)
		}
	}
}
