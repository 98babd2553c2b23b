package tracing

import (
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/codes"

	"github.com/forgekit/forge/event"
)

func newTestEmitter() (*Emitter, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return NewEmitter(provider.Tracer("forge-test")), exporter
}

func TestEmitterRecordsOneSpanPerEvent(t *testing.T) {
	e, exporter := newTestEmitter()

	e.Emit(event.Event{Kind: event.OperationCompleted, ExecutionID: "ex1", WorkflowID: "wf1", OperationID: "op1", OpName: "step"})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != string(event.OperationCompleted) {
		t.Fatalf("expected span named %q, got %q", event.OperationCompleted, spans[0].Name)
	}
}

func TestEmitterRecordsErrorStatus(t *testing.T) {
	e, exporter := newTestEmitter()

	e.Emit(event.Event{Kind: event.OperationFailed, Err: errors.New("boom")})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status.Code)
	}
	if len(spans[0].Events) == 0 {
		t.Fatal("expected an exception event recorded on the span")
	}
}

func TestEmitterIncludesMetaAttributes(t *testing.T) {
	e, exporter := newTestEmitter()

	e.Emit(event.Event{
		Kind: event.CompensationCompleted,
		Meta: map[string]any{"successCount": 3, "failureCount": 1},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	found := map[string]bool{}
	for _, attr := range spans[0].Attributes {
		found[string(attr.Key)] = true
	}
	if !found["successCount"] || !found["failureCount"] {
		t.Fatalf("expected meta attributes present, got %v", spans[0].Attributes)
	}
}
