// Package audit provides a write-once SQL audit sink for operation
// outcomes, backed by MySQL or SQLite. It is an append-only event log,
// not a resumption mechanism: forge carries no workflow-state
// persistence or restart recovery, and the sink is write-only — the
// engine never reads it back.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/forgekit/forge"
	"github.com/forgekit/forge/event"
)

// Dialect selects the SQL dialect used for DDL and placeholder syntax.
type Dialect int

// Supported dialects.
const (
	DialectSQLite Dialect = iota
	DialectMySQL
)

// Sink persists one append-only row per completed or failed operation.
// It implements event.Emitter so it can be registered directly, or
// composed with other emitters via event.MultiEmitter.
type Sink struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens (and creates, if missing) a SQLite-backed Sink at
// path using the pure-Go modernc.org/sqlite driver.
func OpenSQLite(path string) (*Sink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return newSink(db, DialectSQLite)
}

// OpenMySQL opens a MySQL-backed Sink using the given DSN.
func OpenMySQL(dsn string) (*Sink, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return newSink(db, DialectMySQL)
}

// NewSink wraps an already-open *sql.DB as a Sink, for callers that
// manage their own connection pool.
func NewSink(db *sql.DB, dialect Dialect) (*Sink, error) {
	return newSink(db, dialect)
}

func newSink(db *sql.DB, dialect Dialect) (*Sink, error) {
	s := &Sink{db: db, dialect: dialect}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sink) migrate(ctx context.Context) error {
	autoIncrement := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == DialectMySQL {
		autoIncrement = "BIGINT PRIMARY KEY AUTO_INCREMENT"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS forge_operation_audit (
		id %s,
		execution_id VARCHAR(64) NOT NULL,
		workflow_id VARCHAR(64) NOT NULL,
		operation_id VARCHAR(64) NOT NULL,
		operation_name VARCHAR(255) NOT NULL,
		status VARCHAR(16) NOT NULL,
		output_json TEXT,
		error_text TEXT,
		duration_ms BIGINT NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	)`, autoIncrement)
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Emit implements event.Emitter. Only OperationCompleted and
// OperationFailed produce a row; every other event kind is ignored.
func (s *Sink) Emit(ev event.Event) {
	switch ev.Kind {
	case event.OperationCompleted:
		s.insert(ev, "completed", nil)
	case event.OperationFailed:
		var errText string
		if ev.Err != nil {
			errText = ev.Err.Error()
		}
		s.insert(ev, "failed", &errText)
	}
}

func (s *Sink) insert(ev event.Event, status string, errText *string) {
	var outputJSON []byte
	if meta, ok := ev.Meta["output"]; ok {
		outputJSON, _ = json.Marshal(meta)
	}

	const query = `INSERT INTO forge_operation_audit
		(execution_id, workflow_id, operation_id, operation_name, status, output_json, error_text, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var errVal any
	if errText != nil {
		errVal = *errText
	}

	_, _ = s.db.ExecContext(context.Background(), query,
		ev.ExecutionID, ev.WorkflowID, ev.OperationID, ev.OpName, status,
		string(outputJSON), errVal, ev.Duration.Milliseconds(), time.Now().UTC())
}

// Middleware returns an OperationMiddleware that writes one audit row
// per step, including the operation's output on success — something
// the emitter path alone cannot see, since engine events do not carry
// the raw output value. Use this instead of (or alongside) registering
// the Sink as an event.Emitter when the output itself needs auditing.
func (s *Sink) Middleware() forge.OperationMiddleware {
	return func(op forge.Operation, next forge.OperationNext) forge.OperationNext {
		return func(ctx context.Context, input any, f *forge.Foundry) (any, error) {
			start := time.Now()
			output, err := next(ctx, input, f)
			duration := time.Since(start)

			ev := event.Event{
				ExecutionID: f.ExecutionID(),
				OperationID: op.ID(),
				OpName:      op.Name(),
				Duration:    duration,
			}
			if w := f.CurrentWorkflow(); w != nil {
				ev.WorkflowID = w.ID()
			}

			if err != nil {
				ev.Err = err
				s.Emit(event.Event{Kind: event.OperationFailed, ExecutionID: ev.ExecutionID, WorkflowID: ev.WorkflowID, OperationID: ev.OperationID, OpName: ev.OpName, Duration: ev.Duration, Err: err})
				return output, err
			}
			ev.Meta = map[string]any{"output": output}
			s.Emit(event.Event{Kind: event.OperationCompleted, ExecutionID: ev.ExecutionID, WorkflowID: ev.WorkflowID, OperationID: ev.OperationID, OpName: ev.OpName, Duration: ev.Duration, Meta: ev.Meta})
			return output, nil
		}
	}
}

// Close releases the underlying database connection.
func (s *Sink) Close() error {
	return s.db.Close()
}
