package event

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// StdEmitter writes events as structured log lines to an io.Writer,
// either human-readable key=value text or JSONL. Writes are
// best-effort: a write failure is never surfaced to the caller.
type StdEmitter struct {
	w        io.Writer
	jsonMode bool
}

// NewStdEmitter builds a StdEmitter. A nil writer defaults to os.Stdout.
func NewStdEmitter(w io.Writer, jsonMode bool) *StdEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &StdEmitter{w: w, jsonMode: jsonMode}
}

// Emit writes ev to the configured writer.
func (l *StdEmitter) Emit(ev Event) {
	if l.jsonMode {
		l.emitJSON(ev)
		return
	}
	l.emitText(ev)
}

func (l *StdEmitter) emitJSON(ev Event) {
	rec := struct {
		Kind        Kind           `json:"kind"`
		ExecutionID string         `json:"executionId"`
		WorkflowID  string         `json:"workflowId"`
		OperationID string         `json:"operationId,omitempty"`
		OpName      string         `json:"opName,omitempty"`
		DurationMS  int64          `json:"durationMs,omitempty"`
		Err         string         `json:"err,omitempty"`
		Meta        map[string]any `json:"meta,omitempty"`
	}{
		Kind:        ev.Kind,
		ExecutionID: ev.ExecutionID,
		WorkflowID:  ev.WorkflowID,
		OperationID: ev.OperationID,
		OpName:      ev.OpName,
		DurationMS:  ev.Duration.Milliseconds(),
		Meta:        ev.Meta,
	}
	if ev.Err != nil {
		rec.Err = ev.Err.Error()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		_, _ = fmt.Fprintf(l.w, "{\"err\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.w, "%s\n", data)
}

func (l *StdEmitter) emitText(ev Event) {
	_, _ = fmt.Fprintf(l.w, "[%s] execution=%s workflow=%s", ev.Kind, ev.ExecutionID, ev.WorkflowID)
	if ev.OperationID != "" {
		_, _ = fmt.Fprintf(l.w, " operation=%s(%s)", ev.OpName, ev.OperationID)
	}
	if ev.Duration > 0 {
		_, _ = fmt.Fprintf(l.w, " duration=%s", ev.Duration)
	}
	if ev.Err != nil {
		_, _ = fmt.Fprintf(l.w, " err=%q", ev.Err.Error())
	}
	if len(ev.Meta) > 0 {
		if data, err := json.Marshal(ev.Meta); err == nil {
			_, _ = fmt.Fprintf(l.w, " meta=%s", data)
		}
	}
	_, _ = fmt.Fprint(l.w, "\n")
}
