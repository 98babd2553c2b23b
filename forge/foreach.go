package forge

import (
	"context"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DataStrategy controls how ForEach distributes its input across
// children.
type DataStrategy int

// Data distribution strategies.
const (
	// DataShared passes the same input value to every child.
	DataShared DataStrategy = iota
	// DataSplit indexes a random-access input collection, giving
	// child i element i (or nil past the end); non-collection scalars
	// (including strings) degenerate to DataShared.
	DataSplit
	// DataNone passes nil to every child.
	DataNone
)

// ForEachResults is the canonical output of a successful ForEach: the
// per-child outputs, indexed by declared child order regardless of
// completion order.
type ForEachResults struct {
	Results      []any
	TotalResults int
	Timestamp    time.Time
}

// ForEach is a composite Operation that fans input out to an ordered
// list of children with bounded concurrency, an optional shared
// timeout, and a choice of input-distribution strategy. It is the
// engine's only built-in source of parallelism: the top-level operation
// sequence is never parallelized implicitly.
type ForEach struct {
	baseOperation

	children      []Operation
	timeout       time.Duration
	dataStrategy  DataStrategy
	maxConcurrency int
	clock         Clock

	mu       sync.Mutex
	disposed bool
}

// ForEachOption configures a ForEach at construction time.
type ForEachOption func(*ForEach)

// WithForEachTimeout bounds the whole fan-out; on expiry, every child's
// context is cancelled via the engine's linked-cancellation source and
// the outer call fails with a Timeout error.
func WithForEachTimeout(d time.Duration) ForEachOption {
	return func(fe *ForEach) { fe.timeout = d }
}

// WithForEachConcurrency caps the number of children executing at once.
// n must be > 0; 0 (the default) means unlimited.
func WithForEachConcurrency(n int) ForEachOption {
	return func(fe *ForEach) { fe.maxConcurrency = n }
}

// WithForEachDataStrategy sets the input-distribution strategy
// (default DataShared).
func WithForEachDataStrategy(s DataStrategy) ForEachOption {
	return func(fe *ForEach) { fe.dataStrategy = s }
}

// WithForEachClock overrides the default SystemClock used to stamp
// ForEachResults.Timestamp.
func WithForEachClock(c Clock) ForEachOption {
	return func(fe *ForEach) { fe.clock = c }
}

// NewForEach builds a ForEach over children, which must be non-empty.
func NewForEach(id, name string, children []Operation, opts ...ForEachOption) *ForEach {
	supportsRestore := len(children) > 0
	for _, c := range children {
		if !c.SupportsRestore() {
			supportsRestore = false
			break
		}
	}
	fe := &ForEach{
		baseOperation: newBaseOperation(id, name, supportsRestore),
		children:      children,
		clock:         SystemClock{},
	}
	for _, apply := range opts {
		apply(fe)
	}
	return fe
}

type childOutcome struct {
	index  int
	output any
	err    error
}

// Execute fans input out across children per the configured data
// strategy, honoring maxConcurrency and timeout, and assembles a
// ForEachResults on success.
func (fe *ForEach) Execute(ctx context.Context, input any, f *Foundry) (any, error) {
	fe.mu.Lock()
	if fe.disposed {
		fe.mu.Unlock()
		return nil, newError(KindInvalidState, "foreach "+fe.name+" is disposed")
	}
	if f == nil {
		fe.mu.Unlock()
		return nil, newError(KindInvalidArgument, "foreach requires a non-nil foundry")
	}
	children := make([]Operation, len(fe.children))
	copy(children, fe.children)
	fe.mu.Unlock()

	if len(children) == 0 {
		return nil, newError(KindInvalidArgument, "foreach has no children")
	}

	linkedCtx, cancel := fe.linkedContext(ctx)
	defer cancel()

	var sem *semaphore.Weighted
	if fe.maxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(fe.maxConcurrency))
	}

	inputs := fe.distributeInputs(input, len(children))

	outcomes := make([]childOutcome, len(children))
	var wg sync.WaitGroup
	wg.Add(len(children))

	for i, child := range children {
		i, child := i, child
		go func() {
			defer wg.Done()
			if sem != nil {
				if err := sem.Acquire(linkedCtx, 1); err != nil {
					outcomes[i] = childOutcome{index: i, err: err}
					return
				}
				defer sem.Release(1)
			}
			out, err := child.Execute(linkedCtx, inputs[i], f)
			outcomes[i] = childOutcome{index: i, output: out, err: err}
		}()
	}
	wg.Wait()

	return fe.assembleResults(ctx, linkedCtx, outcomes)
}

func (fe *ForEach) linkedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if fe.timeout > 0 {
		return context.WithTimeout(ctx, fe.timeout)
	}
	return context.WithCancel(ctx)
}

func (fe *ForEach) assembleResults(ctx, linkedCtx context.Context, outcomes []childOutcome) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var realErrs []error
	for _, o := range outcomes {
		if o.err != nil && !IsCancellation(o.err) {
			realErrs = append(realErrs, o.err)
		}
	}

	if linkedCtx.Err() == context.DeadlineExceeded {
		return nil, wrapError(KindTimeout, "foreach "+fe.name+" timed out", linkedCtx.Err())
	}

	switch len(realErrs) {
	case 0:
		results := make([]any, len(outcomes))
		for _, o := range outcomes {
			results[o.index] = o.output
		}
		return &ForEachResults{Results: results, TotalResults: len(results), Timestamp: fe.clock.Now()}, nil
	case 1:
		return nil, realErrs[0]
	default:
		return nil, &AggregateError{Errors: realErrs}
	}
}

func (fe *ForEach) distributeInputs(input any, n int) []any {
	out := make([]any, n)
	switch fe.dataStrategy {
	case DataNone:
		return out
	case DataSplit:
		materialized := materializeForSplit(input)
		for i := 0; i < n; i++ {
			out[i] = materialized(i)
		}
		return out
	default: // DataShared
		for i := range out {
			out[i] = input
		}
		return out
	}
}

// materializeForSplit returns an indexing function implementing the
// engine's Split precedence rules: array/slice elements indexed
// directly; other non-string iterables (channels) drained once into a
// list; everything else (including strings) degenerates to sharing the
// whole value across every child.
func materializeForSplit(input any) func(i int) any {
	if input == nil {
		return func(int) any { return nil }
	}
	rv := reflect.ValueOf(input)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		length := rv.Len()
		return func(i int) any {
			if i < length {
				return rv.Index(i).Interface()
			}
			return nil
		}
	case reflect.Chan:
		var list []any
		for {
			v, ok := rv.Recv()
			if !ok {
				break
			}
			list = append(list, v.Interface())
		}
		return func(i int) any {
			if i < len(list) {
				return list[i]
			}
			return nil
		}
	default:
		return func(int) any { return input }
	}
}

// Restore invokes each child's Restore with the result ForEach produced
// for it, under the same concurrency throttle as Execute. output may
// be a *ForEachResults, a plain []any, or a single value (treated as a
// singleton result for child 0).
func (fe *ForEach) Restore(ctx context.Context, output any, f *Foundry) error {
	fe.mu.Lock()
	if fe.disposed {
		fe.mu.Unlock()
		return newError(KindInvalidState, "foreach "+fe.name+" is disposed")
	}
	children := make([]Operation, len(fe.children))
	copy(children, fe.children)
	fe.mu.Unlock()

	var results []any
	switch v := output.(type) {
	case *ForEachResults:
		results = v.Results
	case []any:
		results = v
	default:
		results = []any{output}
	}

	var sem *semaphore.Weighted
	if fe.maxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(fe.maxConcurrency))
	}

	errs := make([]error, len(children))
	var wg sync.WaitGroup
	wg.Add(len(children))
	for i, child := range children {
		i, child := i, child
		go func() {
			defer wg.Done()
			if !child.SupportsRestore() {
				return
			}
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					errs[i] = err
					return
				}
				defer sem.Release(1)
			}
			var childResult any
			if i < len(results) {
				childResult = results[i]
			}
			errs[i] = child.Restore(ctx, childResult, f)
		}()
	}
	wg.Wait()

	var failures []error
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) == 0 {
		return nil
	}
	if len(failures) == 1 {
		return failures[0]
	}
	return &AggregateError{Errors: failures}
}

// Dispose disposes every child exactly once, swallowing per-child
// panics. Idempotent.
func (fe *ForEach) Dispose() {
	fe.mu.Lock()
	if fe.disposed {
		fe.mu.Unlock()
		return
	}
	fe.disposed = true
	children := fe.children
	fe.children = nil
	fe.mu.Unlock()

	for _, c := range children {
		disposeOperation(c)
	}
}
