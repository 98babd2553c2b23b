package forge

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/forgekit/forge/event"
)

// Smith is the orchestrator: it runs a Workflow against a Foundry,
// enforces a global cap on concurrent workflow executions, fires
// workflow-level events, and drives reverse-order compensation after a
// non-cancellation failure. Smith owns the workflow-level middleware
// chain, the Foundry-level analogue being owned by each Foundry.
type Smith struct {
	logger  Logger
	clock   Clock
	emitter event.Emitter
	options Options

	sem *semaphore.Weighted

	mu          sync.Mutex
	middlewares []WorkflowMiddleware

	disposed bool
}

// SmithOption configures a Smith at construction time.
type SmithOption func(*Smith)

// WithSmithLogger overrides the default NopLogger.
func WithSmithLogger(l Logger) SmithOption {
	return func(s *Smith) { s.logger = l }
}

// WithSmithClock overrides the default SystemClock.
func WithSmithClock(c Clock) SmithOption {
	return func(s *Smith) { s.clock = c }
}

// WithSmithEmitter overrides the default event.NullEmitter.
func WithSmithEmitter(e event.Emitter) SmithOption {
	return func(s *Smith) { s.emitter = e }
}

// WithSmithOptions sets the Options every Foundry this Smith creates
// will run under.
func WithSmithOptions(o Options) SmithOption {
	return func(s *Smith) { s.options = o }
}

// NewSmith constructs a Smith. If opts include WithSmithOptions whose
// MaxConcurrentWorkflows is > 0, a global semaphore gates concurrent
// Forge calls across every workflow this Smith drives.
func NewSmith(opts ...SmithOption) *Smith {
	s := &Smith{
		logger:  NopLogger{},
		clock:   SystemClock{},
		emitter: event.NullEmitter{},
		options: DefaultOptions(),
	}
	for _, apply := range opts {
		apply(s)
	}
	if s.options.MaxConcurrentWorkflows > 0 {
		s.sem = semaphore.NewWeighted(int64(s.options.MaxConcurrentWorkflows))
	}
	return s
}

// AddWorkflowMiddleware extends the workflow-level pipeline. Must be
// called before any Forge call whose effect should observe it — there
// is no freeze guard here, unlike Foundry's operation pipeline, since
// Smith itself is not bound to a single in-flight execution.
func (s *Smith) AddWorkflowMiddleware(mw WorkflowMiddleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, mw)
}

func (s *Smith) snapshotMiddlewares() []WorkflowMiddleware {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WorkflowMiddleware, len(s.middlewares))
	copy(out, s.middlewares)
	return out
}

// CreateFoundry builds a Foundry that inherits this Smith's logger,
// clock, emitter, and options snapshot.
func (s *Smith) CreateFoundry(opts ...FoundryOption) *Foundry {
	base := []FoundryOption{
		WithFoundryLogger(s.logger),
		WithFoundryClock(s.clock),
		WithFoundryEmitter(s.emitter),
		WithFoundryOptions(s.options),
	}
	return NewFoundry(append(base, opts...)...)
}

// CreateFoundryFor builds a Foundry pre-bound to workflow.
func (s *Smith) CreateFoundryFor(w *Workflow) (*Foundry, error) {
	f := s.CreateFoundry()
	if err := f.SetCurrentWorkflow(w); err != nil {
		f.Dispose()
		return nil, err
	}
	return f, nil
}

// CreateFoundryWithData builds a Foundry seeded with data.
func (s *Smith) CreateFoundryWithData(data map[string]any) *Foundry {
	return s.CreateFoundry(WithFoundryData(data))
}

// Forge runs workflow on a fresh, internally-owned Foundry, seeded
// with input; the Foundry is disposed before Forge returns.
func (s *Smith) Forge(ctx context.Context, w *Workflow, input any) (any, error) {
	return s.ForgeWithData(ctx, w, input, nil)
}

// ForgeWithData is Forge, additionally seeding the internally-owned
// Foundry's Properties with data.
func (s *Smith) ForgeWithData(ctx context.Context, w *Workflow, input any, data map[string]any) (any, error) {
	f := s.CreateFoundryWithData(data)
	defer func() {
		// Detach the workflow's operations first: they belong to the
		// Workflow, which may be forged again, not to this Foundry.
		_ = f.ReplaceOperations(nil)
		f.Dispose()
	}()
	return s.ForgeOn(ctx, w, f, input)
}

// ForgeOn runs workflow on a caller-owned Foundry, seeded with input;
// the caller retains Foundry lifetime ownership (including Dispose).
func (s *Smith) ForgeOn(ctx context.Context, w *Workflow, f *Foundry, input any) (any, error) {
	if s.disposed {
		return nil, newError(KindInvalidState, "smith is disposed")
	}
	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer s.sem.Release(1)
	}

	if err := f.SetCurrentWorkflow(w); err != nil {
		return nil, err
	}

	mws := s.snapshotMiddlewares()
	terminal := func(ctx context.Context, w *Workflow, f *Foundry, input any) (any, error) {
		return s.runCore(ctx, w, f, input)
	}
	chain := chainWorkflowMiddleware(w, terminal, mws)
	return chain(ctx, w, f, input)
}

func (s *Smith) runCore(ctx context.Context, w *Workflow, f *Foundry, input any) (any, error) {
	log := s.logger.With("workflow_id", w.ID(), "workflow_name", w.Name(), "execution_id", f.ExecutionID())
	start := s.clock.Now()

	s.emit(event.Event{Kind: event.WorkflowStarted, WorkflowID: w.ID(), ExecutionID: f.ExecutionID()})

	if err := f.ReplaceOperations(w.Operations()); err != nil {
		return nil, err
	}

	result, err := f.Forge(ctx, input)
	duration := s.clock.Now().Sub(start)

	if err == nil {
		s.emit(event.Event{
			Kind: event.WorkflowCompleted, WorkflowID: w.ID(), ExecutionID: f.ExecutionID(),
			Duration: duration, Meta: map[string]any{"properties": f.Properties().Snapshot()},
		})
		return result, nil
	}

	if IsCancellation(err) {
		log.Log(LevelWarn, "workflow cancelled", "error", err)
		return nil, err
	}

	lastFailedName, _ := f.Properties().Get(keyLastFailedName)
	s.emit(event.Event{
		Kind: event.WorkflowFailed, WorkflowID: w.ID(), ExecutionID: f.ExecutionID(),
		Duration: duration, Err: err, Meta: map[string]any{"lastFailedName": lastFailedName},
	})

	if !w.SupportsRestore() {
		return nil, err
	}

	lastCompletedIdx := -1
	if v, ok := f.Properties().Get(keyLastCompletedIdx); ok {
		if idx, ok := v.(int); ok {
			lastCompletedIdx = idx
		}
	}

	compErrs := s.compensate(ctx, w, f, lastCompletedIdx, err)
	if len(compErrs) > 0 && (s.options.FailFastCompensation || s.options.ThrowOnCompensationError) {
		return nil, &AggregateError{Errors: append([]error{err}, compErrs...)}
	}
	return nil, err
}

// compensate runs Restore on every restore-capable operation from
// lastCompletedIdx down to 0, in reverse completion order.
func (s *Smith) compensate(ctx context.Context, w *Workflow, f *Foundry, lastCompletedIdx int, reason error) []error {
	if lastCompletedIdx < 0 {
		return nil
	}
	ops := w.Operations()
	lastOpName := ""
	if lastCompletedIdx < len(ops) {
		lastOpName = ops[lastCompletedIdx].Name()
	}
	s.emit(event.Event{Kind: event.CompensationTriggered, WorkflowID: w.ID(), ExecutionID: f.ExecutionID(), OpName: lastOpName, Err: reason})

	compStart := s.clock.Now()
	var successCount, failureCount int
	var errs []error

	for i := lastCompletedIdx; i >= 0; i-- {
		op := ops[i]
		if !op.SupportsRestore() {
			s.logger.Log(LevelDebug, "skipping restore, operation does not support it", "operation", op.Name())
			continue
		}

		s.emit(event.Event{Kind: event.OperationRestoreStarted, WorkflowID: w.ID(), ExecutionID: f.ExecutionID(), OpName: op.Name(), OperationID: op.ID()})
		output, _ := f.Properties().Get(keyOperationOutput(op.ID()))

		start := s.clock.Now()
		restoreErr := op.Restore(ctx, output, f)
		duration := s.clock.Now().Sub(start)

		if restoreErr != nil {
			failureCount++
			wrapped := &RestoreError{ExecutionID: f.ExecutionID(), WorkflowID: w.ID(), OperationID: op.ID(), OpName: op.Name(), Cause: restoreErr}
			errs = append(errs, wrapped)
			s.emit(event.Event{Kind: event.OperationRestoreFailed, WorkflowID: w.ID(), ExecutionID: f.ExecutionID(), OpName: op.Name(), OperationID: op.ID(), Duration: duration, Err: restoreErr})
			if s.options.FailFastCompensation {
				break
			}
			continue
		}
		successCount++
		s.emit(event.Event{Kind: event.OperationRestoreCompleted, WorkflowID: w.ID(), ExecutionID: f.ExecutionID(), OpName: op.Name(), OperationID: op.ID(), Duration: duration})
	}

	totalDuration := s.clock.Now().Sub(compStart)
	s.emit(event.Event{
		Kind: event.CompensationCompleted, WorkflowID: w.ID(), ExecutionID: f.ExecutionID(), Duration: totalDuration,
		Meta: map[string]any{"successCount": successCount, "failureCount": failureCount},
	})
	return errs
}

func (s *Smith) emit(ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Log(LevelError, "event subscriber panicked", "panic", r, "kind", ev.Kind)
		}
	}()
	s.emitter.Emit(ev)
}

// Dispose marks the Smith disposed, so later Forge calls fail, and
// drops its workflow middlewares. Idempotent; safe to call even if no
// workflow was ever run.
func (s *Smith) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.middlewares = nil
}
