package forge

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Level identifies the severity of a log record.
type Level int

// Log levels, lowest to highest severity.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
)

// String renders the level the way it appears in log output.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Logger is a structured sink with levels and optional scoped properties.
// It is an interface-only collaborator per the engine's design: the core
// never assumes a specific logging backend. Logger implementations must
// not panic; a panicking logger would otherwise corrupt workflow
// execution through the event-emission path.
type Logger interface {
	// Log writes a single structured record. fields is an optional set
	// of key/value pairs (odd-length slices drop the trailing key).
	Log(level Level, msg string, fields ...any)

	// With returns a Logger that always includes the given scoped
	// properties on top of whatever fields a later Log call adds.
	With(fields ...any) Logger
}

// NewStdLogger builds the engine's default Logger: structured records
// written directly to an io.Writer, either as human-readable
// key=value pairs or as JSONL, with no external logging framework.
func NewStdLogger(w io.Writer, jsonMode bool) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &stdLogger{w: w, jsonMode: jsonMode}
}

type stdLogger struct {
	mu       sync.Mutex
	w        io.Writer
	jsonMode bool
	scope    []any
}

func (l *stdLogger) Log(level Level, msg string, fields ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := make([]any, 0, len(l.scope)+len(fields))
	all = append(all, l.scope...)
	all = append(all, fields...)

	if l.jsonMode {
		rec := map[string]any{"level": level.String(), "msg": msg}
		for i := 0; i+1 < len(all); i += 2 {
			key, ok := all[i].(string)
			if !ok {
				continue
			}
			rec[key] = all[i+1]
		}
		data, err := json.Marshal(rec)
		if err != nil {
			_, _ = fmt.Fprintf(l.w, "{\"level\":\"error\",\"msg\":\"log marshal failed: %v\"}\n", err)
			return
		}
		_, _ = fmt.Fprintf(l.w, "%s\n", data)
		return
	}

	_, _ = fmt.Fprintf(l.w, "[%s] %s", level.String(), msg)
	for i := 0; i+1 < len(all); i += 2 {
		_, _ = fmt.Fprintf(l.w, " %v=%v", all[i], all[i+1])
	}
	_, _ = fmt.Fprint(l.w, "\n")
}

func (l *stdLogger) With(fields ...any) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	scope := make([]any, 0, len(l.scope)+len(fields))
	scope = append(scope, l.scope...)
	scope = append(scope, fields...)
	return &stdLogger{w: l.w, jsonMode: l.jsonMode, scope: scope}
}

// NopLogger discards every record. Useful as a zero-configuration
// default where observability is not wired up.
type NopLogger struct{}

// Log implements Logger by discarding the record.
func (NopLogger) Log(Level, string, ...any) {}

// With implements Logger by returning itself unchanged.
func (l NopLogger) With(...any) Logger { return l }
