package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) string {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value.Emit()
		}
	}
	return ""
}

func TestSpanManager_Hierarchy(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, run := sm.StartRunSpan(context.Background(), "architecture", "run-1")
	nodeCtx, node := sm.StartNodeSpan(ctx, "manager")
	_, agent := sm.StartAgentSpan(nodeCtx, "manager", "qwen3:8b")
	sm.EndSpanWithError(agent, nil)
	sm.EndSpanWithError(node, nil)
	sm.EndSpanWithError(run, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}

	runSpan := byName["archflow.run"]
	nodeSpan := byName["archflow.node.manager"]
	agentSpan := byName["archflow.agent.manager"]

	assert.Equal(t, "architecture", attrValue(runSpan.Attributes, "graph.name"))
	assert.Equal(t, "run-1", attrValue(runSpan.Attributes, "run.id"))
	assert.Equal(t, runSpan.SpanContext.SpanID(), nodeSpan.Parent.SpanID())
	assert.Equal(t, nodeSpan.SpanContext.SpanID(), agentSpan.Parent.SpanID())
	assert.Equal(t, "qwen3:8b", attrValue(agentSpan.Attributes, "llm.model"))
	assert.Equal(t, trace.SpanKindClient, agentSpan.SpanKind)
	assert.Equal(t, codes.Ok, runSpan.Status.Code)
}

func TestEndSpanWithError(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	_, span := sm.StartNodeSpan(context.Background(), "judge")
	sm.EndSpanWithError(span, errors.New("schema violation"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "schema violation", spans[0].Status.Description)
	require.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "exception", spans[0].Events[0].Name)

	assert.NotPanics(t, func() { EndSpanWithError(nil, errors.New("x")) })
}

func TestAddSpanEvent(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartNodeSpan(context.Background(), "judge")
	sm.AddSpanEvent(ctx, "verdict", attribute.Bool("approved", true))
	span.End()

	// No span in context: nothing to record.
	assert.NotPanics(t, func() { sm.AddSpanEvent(context.Background(), "ignored") })

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "verdict", spans[0].Events[0].Name)
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	got, span := sm.StartRunSpan(ctx, "g", "r")
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())

	got, span = sm.StartAgentSpan(ctx, "judge", "m")
	assert.Equal(t, ctx, got)
	assert.NotPanics(t, func() {
		sm.EndSpanWithError(span, errors.New("x"))
		sm.AddSpanEvent(ctx, "e")
	})
}
