package audit

import (
	"context"
	"testing"
	"time"

	"github.com/forgekit/forge"
	"github.com/forgekit/forge/event"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite sink: %v", err)
	}
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func countRows(t *testing.T, s *Sink) int {
	t.Helper()
	row := s.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM forge_operation_audit")
	var n int
	if err := row.Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func TestSinkMigratesOnOpen(t *testing.T) {
	s := newTestSink(t)
	if countRows(t, s) != 0 {
		t.Fatal("expected an empty, freshly migrated table")
	}
}

func TestSinkEmitWritesRowOnCompletion(t *testing.T) {
	s := newTestSink(t)
	s.Emit(event.Event{
		Kind: event.OperationCompleted, ExecutionID: "ex1", WorkflowID: "wf1",
		OperationID: "op1", OpName: "step", Duration: 5 * time.Millisecond,
	})
	if got := countRows(t, s); got != 1 {
		t.Fatalf("expected 1 row after a completed event, got %d", got)
	}
}

func TestSinkEmitWritesRowOnFailureWithErrorText(t *testing.T) {
	s := newTestSink(t)
	s.Emit(event.Event{
		Kind: event.OperationFailed, ExecutionID: "ex1", WorkflowID: "wf1",
		OperationID: "op1", OpName: "step", Err: context.DeadlineExceeded,
	})

	row := s.db.QueryRowContext(context.Background(), "SELECT status, error_text FROM forge_operation_audit")
	var status, errText string
	if err := row.Scan(&status, &errText); err != nil {
		t.Fatalf("scan row: %v", err)
	}
	if status != "failed" || errText == "" {
		t.Fatalf("expected failed status with non-empty error text, got status=%q errText=%q", status, errText)
	}
}

func TestSinkIgnoresUnrelatedEventKinds(t *testing.T) {
	s := newTestSink(t)
	s.Emit(event.Event{Kind: event.WorkflowStarted})
	s.Emit(event.Event{Kind: event.CompensationTriggered})
	if got := countRows(t, s); got != 0 {
		t.Fatalf("expected no rows for non-operation events, got %d", got)
	}
}

func TestSinkMiddlewareRecordsOutputOnSuccess(t *testing.T) {
	s := newTestSink(t)
	op := forge.NewOperationFunc("op", "step", func(context.Context, any, *forge.Foundry) (any, error) {
		return "result-value", nil
	})
	wrapped := s.Middleware()(op, func(ctx context.Context, input any, f *forge.Foundry) (any, error) {
		return op.Execute(ctx, input, f)
	})

	if _, err := wrapped(context.Background(), nil, forge.NewFoundry()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	row := s.db.QueryRowContext(context.Background(), "SELECT output_json FROM forge_operation_audit")
	var outputJSON string
	if err := row.Scan(&outputJSON); err != nil {
		t.Fatalf("scan row: %v", err)
	}
	if outputJSON != `"result-value"` {
		t.Fatalf("expected recorded output json, got %q", outputJSON)
	}
}
