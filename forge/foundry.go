package forge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/forgekit/forge/event"
)

// Foundry is the per-execution context: it carries the concurrent
// property store, the current workflow pointer, the operation-level
// middleware pipeline, and the logger/clock/emitter a run observes.
// A Foundry may be reused across sequential executions (via Reset) but
// never across concurrent ones — see Forge's re-entrancy guard.
type Foundry struct {
	executionID string
	properties  *Properties
	logger      Logger
	clock       Clock
	emitter     event.Emitter
	options     Options
	serviceProvider any

	mu              sync.Mutex
	currentWorkflow *Workflow
	operations      []Operation
	middlewares     []OperationMiddleware

	frozen    atomic.Bool
	executing atomic.Bool
	disposed  atomic.Bool
}

// FoundryOption configures a Foundry at construction time.
type FoundryOption func(*Foundry)

// WithFoundryLogger overrides the default NopLogger.
func WithFoundryLogger(l Logger) FoundryOption {
	return func(f *Foundry) { f.logger = l }
}

// WithFoundryClock overrides the default SystemClock.
func WithFoundryClock(c Clock) FoundryOption {
	return func(f *Foundry) { f.clock = c }
}

// WithFoundryEmitter overrides the default event.NullEmitter.
func WithFoundryEmitter(e event.Emitter) FoundryOption {
	return func(f *Foundry) { f.emitter = e }
}

// WithFoundryOptions sets the Options snapshot the Foundry executes
// under.
func WithFoundryOptions(o Options) FoundryOption {
	return func(f *Foundry) { f.options = o }
}

// WithFoundryServiceProvider attaches an opaque, caller-defined service
// lookup handle, propagated by Smith.CreateFoundry but otherwise
// untouched by the engine.
func WithFoundryServiceProvider(sp any) FoundryOption {
	return func(f *Foundry) { f.serviceProvider = sp }
}

// WithFoundryData seeds the Properties store at construction.
func WithFoundryData(seed map[string]any) FoundryOption {
	return func(f *Foundry) { f.properties = NewProperties(seed) }
}

// NewFoundry constructs a Foundry ready to run a workflow.
func NewFoundry(opts ...FoundryOption) *Foundry {
	f := &Foundry{
		executionID: uuid.NewString(),
		properties:  NewProperties(nil),
		logger:      NopLogger{},
		clock:       SystemClock{},
		emitter:     event.NullEmitter{},
		options:     DefaultOptions(),
	}
	for _, apply := range opts {
		apply(f)
	}
	return f
}

// ExecutionID returns the unique identifier of this execution context.
func (f *Foundry) ExecutionID() string { return f.executionID }

// Properties returns the concurrent property store.
func (f *Foundry) Properties() *Properties { return f.properties }

// Logger returns the configured Logger.
func (f *Foundry) Logger() Logger { return f.logger }

// ServiceProvider returns the opaque handle set via
// WithFoundryServiceProvider, if any.
func (f *Foundry) ServiceProvider() any { return f.serviceProvider }

// CurrentWorkflow returns the workflow currently bound to the Foundry,
// or nil.
func (f *Foundry) CurrentWorkflow() *Workflow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentWorkflow
}

// IsFrozen reports whether mutation methods are currently rejected.
func (f *Foundry) IsFrozen() bool { return f.frozen.Load() }

// IsExecuting reports whether a Forge call is in flight.
func (f *Foundry) IsExecuting() bool { return f.executing.Load() }

// IsDisposed reports whether Dispose has run.
func (f *Foundry) IsDisposed() bool { return f.disposed.Load() }

func (f *Foundry) checkMutable() error {
	if f.disposed.Load() {
		return newError(KindInvalidState, "foundry is disposed")
	}
	if f.frozen.Load() {
		return newError(KindInvalidState, "foundry is frozen while executing")
	}
	return nil
}

// SetCurrentWorkflow binds workflow as the operation source for the
// next Forge call. Fails if Frozen or Disposed.
func (f *Foundry) SetCurrentWorkflow(w *Workflow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.currentWorkflow = w
	if w != nil {
		f.operations = w.Operations()
	}
	return nil
}

// AddOperation appends op to the to-run list. Fails if Frozen or
// Disposed.
func (f *Foundry) AddOperation(op Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.operations = append(f.operations, op)
	return nil
}

// ReplaceOperations replaces the entire to-run list. Fails if Frozen or
// Disposed.
func (f *Foundry) ReplaceOperations(ops []Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.operations = make([]Operation, len(ops))
	copy(f.operations, ops)
	return nil
}

// AddMiddleware appends a single operation-middleware to the pipeline.
// Fails if Frozen or Disposed.
func (f *Foundry) AddMiddleware(mw OperationMiddleware) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.middlewares = append(f.middlewares, mw)
	return nil
}

// AddMiddlewares appends several operation-middlewares in order. Fails
// if Frozen or Disposed.
func (f *Foundry) AddMiddlewares(mws ...OperationMiddleware) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkMutable(); err != nil {
		return err
	}
	f.middlewares = append(f.middlewares, mws...)
	return nil
}

// RemoveMiddleware removes the middleware at idx. Middlewares are
// plain funcs, which are not comparable in Go, so removal is by index
// rather than by value. Fails if Frozen or Disposed, or if idx is out
// of range.
func (f *Foundry) RemoveMiddleware(idx int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkMutable(); err != nil {
		return err
	}
	if idx < 0 || idx >= len(f.middlewares) {
		return newError(KindInvalidArgument, "middleware index out of range")
	}
	f.middlewares = append(f.middlewares[:idx], f.middlewares[idx+1:]...)
	return nil
}

// Reset clears transient execution state (Properties, bookkeeping) so
// the Foundry can be reused for another sequential run, preserving its
// identity, logger, clock, emitter, options, middlewares, and bound
// workflow. Fails while Executing.
func (f *Foundry) Reset() error {
	if f.executing.Load() {
		return newError(KindInvalidState, "foundry is executing")
	}
	f.properties.Clear()
	f.frozen.Store(false)
	return nil
}

func (f *Foundry) emit(ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Log(LevelError, "event subscriber panicked", "panic", r, "kind", ev.Kind)
		}
	}()
	ev.ExecutionID = f.executionID
	f.emitter.Emit(ev)
}

// Forge runs the Foundry's bound operation list sequentially against
// ctx. input is passed to the first operation; subsequent inputs
// follow Options.EnableOutputChaining.
func (f *Foundry) Forge(ctx context.Context, input any) (any, error) {
	if f.disposed.Load() {
		return nil, newError(KindInvalidState, "foundry is disposed")
	}
	if !f.executing.CompareAndSwap(false, true) {
		return nil, newError(KindInvalidState, "foundry is already executing")
	}
	f.frozen.Store(true)
	defer func() {
		f.executing.Store(false)
		f.frozen.Store(false)
	}()

	f.mu.Lock()
	ops := make([]Operation, len(f.operations))
	copy(ops, f.operations)
	mws := make([]OperationMiddleware, len(f.middlewares))
	copy(mws, f.middlewares)
	f.mu.Unlock()

	chainedInput := input
	var lastResult any
	var errs []error

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f.emit(event.Event{Kind: event.OperationStarted, OpName: op.Name(), OperationID: op.ID()})
		f.properties.Set(keyCurrentIndex, i)

		start := f.clock.Now()
		result, err := f.executeWithMiddleware(ctx, op, chainedInput, mws)
		duration := f.clock.Now().Sub(start)

		if err != nil {
			f.properties.Set(keyLastFailedIdx, i)
			f.properties.Set(keyLastFailedName, op.Name())
			f.properties.Set(keyLastFailedID, op.ID())
			f.emit(event.Event{Kind: event.OperationFailed, OpName: op.Name(), OperationID: op.ID(), Duration: duration, Err: err})

			if IsCancellation(err) {
				return nil, err
			}
			wrapped := &OperationError{OpName: op.Name(), OperationID: op.ID(), ExecutionID: f.executionID, Cause: err}
			if f.currentWorkflow != nil {
				wrapped.WorkflowID = f.currentWorkflow.ID()
			}
			if f.options.ContinueOnError {
				errs = append(errs, wrapped)
				continue
			}
			return nil, wrapped
		}

		lastResult = result
		if f.options.EnableOutputChaining {
			chainedInput = result
		}

		f.properties.Set(keyOutputAt(i, op.Name()), result)
		f.properties.Set(keyLastCompletedIdx, i)
		f.properties.Set(keyLastCompletedName, op.Name())
		f.properties.Set(keyLastCompletedID, op.ID())
		f.properties.Set(keyOperationOutput(op.ID()), result)

		f.emit(event.Event{Kind: event.OperationCompleted, OpName: op.Name(), OperationID: op.ID(), Duration: duration})
	}

	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return lastResult, nil
}

func (f *Foundry) executeWithMiddleware(ctx context.Context, op Operation, input any, mws []OperationMiddleware) (any, error) {
	terminal := func(ctx context.Context, input any, _ *Foundry) (any, error) {
		return runWithHooks(ctx, op, input, f)
	}
	chain := chainOperationMiddleware(op, terminal, mws)
	return chain(ctx, input, f)
}

// Dispose detaches the emitter, disposes every previously-bound
// operation once (swallowing per-operation panics), and clears the
// middleware list and property store. Idempotent.
func (f *Foundry) Dispose() {
	if !f.disposed.CompareAndSwap(false, true) {
		return
	}
	f.mu.Lock()
	ops := f.operations
	f.operations = nil
	f.middlewares = nil
	f.currentWorkflow = nil
	f.mu.Unlock()

	for _, op := range ops {
		disposeOperation(op)
	}
	f.properties.Clear()
	f.emitter = event.NullEmitter{}
}
