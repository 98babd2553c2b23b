// Package tracing provides an OpenTelemetry-backed event.Emitter that
// opens one span per event, tagged with forge's own event attributes:
// execution id, workflow id, and operation id/name.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/forgekit/forge/event"
)

// Emitter creates an OpenTelemetry span for every forge event it
// receives. Spans are point-in-time: they are started and immediately
// ended, with Duration (if present on the event) folded in as an
// attribute rather than real span timing, since forge events are
// fired after the fact rather than bracketing the work themselves.
type Emitter struct {
	tracer trace.Tracer
}

// NewEmitter builds a tracing Emitter from an OpenTelemetry tracer,
// typically obtained via otel.Tracer("forge").
func NewEmitter(tracer trace.Tracer) *Emitter {
	return &Emitter{tracer: tracer}
}

// Emit implements event.Emitter.
func (e *Emitter) Emit(ev event.Event) {
	_, span := e.tracer.Start(context.Background(), string(ev.Kind))
	defer span.End()

	span.SetAttributes(
		attribute.String("forge.execution_id", ev.ExecutionID),
		attribute.String("forge.workflow_id", ev.WorkflowID),
		attribute.String("forge.operation_id", ev.OperationID),
		attribute.String("forge.operation_name", ev.OpName),
	)
	if ev.Duration > 0 {
		span.SetAttributes(attribute.Int64("forge.duration_ms", ev.Duration.Milliseconds()))
	}
	for k, v := range ev.Meta {
		span.SetAttributes(metaAttribute(k, v))
	}
	if ev.Err != nil {
		span.SetStatus(codes.Error, ev.Err.Error())
		span.RecordError(ev.Err)
	}
}

func metaAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case time.Duration:
		return attribute.Int64(key, v.Milliseconds())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// Flush force-flushes the global TracerProvider, if it supports it.
// Call before process shutdown to ensure buffered spans are exported.
func Flush(ctx context.Context) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := otel.GetTracerProvider().(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}
