package forge

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies engine-raised errors into a fixed, typed set
// rather than a free-form string code.
type ErrorKind int

// Error kinds.
const (
	KindInvalidArgument ErrorKind = iota
	KindInvalidState
	KindOperationFailure
	KindRestoreFailure
	KindAggregate
	KindTimeout
	KindNotSupported
)

// String renders the kind for diagnostics.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindInvalidState:
		return "InvalidState"
	case KindOperationFailure:
		return "OperationFailure"
	case KindRestoreFailure:
		return "RestoreFailure"
	case KindAggregate:
		return "Aggregate"
	case KindTimeout:
		return "Timeout"
	case KindNotSupported:
		return "NotSupported"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type raised by the engine itself (as
// opposed to errors returned by user Operations). It carries a Kind so
// callers can branch on category with errors.As, plus an optional
// wrapped Cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// OperationError wraps a failure raised inside an Operation's Execute,
// carrying identifying context: the owning Foundry's execution id, the
// current workflow id, and the failing operation's name and id.
type OperationError struct {
	ExecutionID string
	WorkflowID  string
	OperationID string
	OpName      string
	Cause       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %q (%s) failed in workflow %s (execution %s): %v",
		e.OpName, e.OperationID, e.WorkflowID, e.ExecutionID, e.Cause)
}

// Unwrap exposes the original cause.
func (e *OperationError) Unwrap() error { return e.Cause }

// RestoreError is the Restore-path analogue of OperationError.
type RestoreError struct {
	ExecutionID string
	WorkflowID  string
	OperationID string
	OpName      string
	Cause       error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore of operation %q (%s) failed in workflow %s (execution %s): %v",
		e.OpName, e.OperationID, e.WorkflowID, e.ExecutionID, e.Cause)
}

// Unwrap exposes the original cause.
func (e *RestoreError) Unwrap() error { return e.Cause }

// InvalidInputError is returned by typed operations when the supplied
// input's dynamic type does not match the declared input type.
type InvalidInputError struct {
	Declared string
	Actual   string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: declared type %s, got %s", e.Declared, e.Actual)
}

// AggregateError collects multiple failures: either several step
// failures under Options.ContinueOnError, or an original workflow
// failure followed by compensation failures. Original-first ordering
// is preserved in Errors.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%d errors occurred: [%s]", len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap supports errors.Is/errors.As traversal over every constituent error.
func (e *AggregateError) Unwrap() []error { return e.Errors }

// IsCancellation reports whether err is (or wraps) a context
// cancellation or deadline error. Cancellation always propagates
// unwrapped and is never routed through the compensation path.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
