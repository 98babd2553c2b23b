package forge

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Operation is the unit of work executed by a Foundry. Implementations
// may hold internal mutable state, but the engine makes no re-entrancy
// guarantee: an Operation instance referenced by more than one
// concurrently executing Workflow (e.g. shared across ForEach children
// running in parallel) must be safe for that concurrent use itself.
type Operation interface {
	// ID uniquely identifies this operation instance.
	ID() string
	// Name is a free-form, human-readable label.
	Name() string
	// SupportsRestore reports whether Restore may be called on this
	// operation during compensation.
	SupportsRestore() bool
	// Execute runs the operation against input, returning its output.
	// Cancellation from ctx propagates unwrapped.
	Execute(ctx context.Context, input any, f *Foundry) (any, error)
	// Restore reverses a previously successful Execute, given the
	// output Execute returned. Only called when SupportsRestore is
	// true during compensation; see KindNotSupported for the direct-call
	// contract otherwise.
	Restore(ctx context.Context, output any, f *Foundry) error
	// Dispose releases any resources held by the operation. Dispose
	// must never panic across the engine boundary; the engine
	// recovers and discards such a panic regardless, but well-behaved
	// implementations should not rely on that.
	Dispose()
}

// BeforeExecutor is an optional lifecycle hook: if an Operation
// implements it, OnBeforeExecute runs immediately before Execute,
// inside the innermost operation-middleware frame (middlewares observe
// the hook as part of Execute, not as a separate step).
type BeforeExecutor interface {
	OnBeforeExecute(ctx context.Context, input any, f *Foundry) error
}

// AfterExecutor is the Execute-bracketing counterpart to BeforeExecutor.
type AfterExecutor interface {
	OnAfterExecute(ctx context.Context, input, output any, f *Foundry) error
}

// runWithHooks invokes OnBeforeExecute (if implemented), then Execute,
// then OnAfterExecute (if implemented and Execute succeeded), as a
// single unit — this whole sequence is what operation-middlewares wrap.
func runWithHooks(ctx context.Context, op Operation, input any, f *Foundry) (any, error) {
	if before, ok := op.(BeforeExecutor); ok {
		if err := before.OnBeforeExecute(ctx, input, f); err != nil {
			return nil, err
		}
	}
	output, err := op.Execute(ctx, input, f)
	if err != nil {
		return output, err
	}
	if after, ok := op.(AfterExecutor); ok {
		if err := after.OnAfterExecute(ctx, input, output, f); err != nil {
			return output, err
		}
	}
	return output, nil
}

// baseOperation is an embeddable helper providing ID/Name/SupportsRestore
// bookkeeping, the way most concrete operations in this module are built.
type baseOperation struct {
	id              string
	name            string
	supportsRestore bool
}

func newBaseOperation(id, name string, supportsRestore bool) baseOperation {
	if id == "" {
		id = uuid.NewString()
	}
	return baseOperation{id: id, name: name, supportsRestore: supportsRestore}
}

func (b baseOperation) ID() string              { return b.id }
func (b baseOperation) Name() string            { return b.name }
func (b baseOperation) SupportsRestore() bool   { return b.supportsRestore }

// OperationFunc adapts a plain function into an Operation without
// restore support or disposal, for ad hoc, stateless units of work.
type OperationFunc struct {
	baseOperation
	fn func(ctx context.Context, input any, f *Foundry) (any, error)
}

// NewOperationFunc builds a non-restorable Operation from a plain
// function. id may be empty, in which case one is generated.
func NewOperationFunc(id, name string, fn func(ctx context.Context, input any, f *Foundry) (any, error)) *OperationFunc {
	return &OperationFunc{baseOperation: newBaseOperation(id, name, false), fn: fn}
}

// Execute implements Operation.
func (o *OperationFunc) Execute(ctx context.Context, input any, f *Foundry) (any, error) {
	return o.fn(ctx, input, f)
}

// Restore implements Operation; OperationFunc never supports restore.
func (o *OperationFunc) Restore(context.Context, any, *Foundry) error {
	return newError(KindNotSupported, "operation "+o.name+" does not support restore")
}

// Dispose implements Operation as a no-op.
func (o *OperationFunc) Dispose() {}

// TypedOperation wraps a strongly-typed Execute/Restore pair, casting
// the engine's `any` input/output at the boundary and failing with
// InvalidInputError on mismatch, per the engine's typed-operation
// convenience contract. A nil input is accepted only when In is an
// interface, pointer, slice, map, chan, or func type (i.e. a type that itself
// admits the absence of a value).
type TypedOperation[In, Out any] struct {
	baseOperation
	execute func(ctx context.Context, input In, f *Foundry) (Out, error)
	restore func(ctx context.Context, output Out, f *Foundry) error
	dispose func()
}

// NewTypedOperation builds a TypedOperation. restore and dispose may be
// nil; a nil restore means SupportsRestore() is false.
func NewTypedOperation[In, Out any](
	id, name string,
	execute func(ctx context.Context, input In, f *Foundry) (Out, error),
	restore func(ctx context.Context, output Out, f *Foundry) error,
	dispose func(),
) *TypedOperation[In, Out] {
	return &TypedOperation[In, Out]{
		baseOperation: newBaseOperation(id, name, restore != nil),
		execute:       execute,
		restore:       restore,
		dispose:       dispose,
	}
}

func admitsNil[T any]() bool {
	var zero T
	switch reflect.TypeOf(&zero).Elem().Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return true
	default:
		return false
	}
}

func castInput[In any](input any) (In, error) {
	var zero In
	if input == nil {
		if admitsNil[In]() {
			return zero, nil
		}
		return zero, &InvalidInputError{Declared: fmt.Sprintf("%T", zero), Actual: "nil"}
	}
	typed, ok := input.(In)
	if !ok {
		return zero, &InvalidInputError{Declared: fmt.Sprintf("%T", zero), Actual: fmt.Sprintf("%T", input)}
	}
	return typed, nil
}

// Execute implements Operation, performing the checked downcast first.
func (o *TypedOperation[In, Out]) Execute(ctx context.Context, input any, f *Foundry) (any, error) {
	typed, err := castInput[In](input)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, typed, f)
}

// Restore implements Operation.
func (o *TypedOperation[In, Out]) Restore(ctx context.Context, output any, f *Foundry) error {
	if o.restore == nil {
		return newError(KindNotSupported, "operation "+o.name+" does not support restore")
	}
	var typed Out
	if output != nil {
		var ok bool
		typed, ok = output.(Out)
		if !ok {
			return &InvalidInputError{Declared: fmt.Sprintf("%T", typed), Actual: fmt.Sprintf("%T", output)}
		}
	}
	return o.restore(ctx, typed, f)
}

// Dispose implements Operation.
func (o *TypedOperation[In, Out]) Dispose() {
	if o.dispose != nil {
		o.dispose()
	}
}

// disposeOperation runs op.Dispose(), recovering and swallowing any
// panic so that a misbehaving operation can never abort engine
// teardown. Returns the recovered value, if any; the engine's own
// callers discard it.
func disposeOperation(op Operation) (recovered any) {
	defer func() { recovered = recover() }()
	op.Dispose()
	return nil
}
