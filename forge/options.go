package forge

// Options configures Foundry and Smith execution behavior. The zero
// value is valid and leaves every option off; DefaultOptions, which
// NewFoundry and NewSmith start from, turns EnableOutputChaining on.
type Options struct {
	// ContinueOnError, if true, records a failing step into a per-run
	// error list and continues the run; if every step finishes, the
	// run ultimately returns an AggregateError. If false (default), the
	// first failing step aborts the run immediately.
	ContinueOnError bool

	// EnableOutputChaining, if true, feeds each step's output as the
	// next step's input. If false, every step receives the workflow's
	// original input. DefaultOptions enables it, the recommended setting.
	EnableOutputChaining bool

	// MaxConcurrentWorkflows, if > 0, upper-bounds the number of
	// concurrent Smith.Forge calls across all workflows a Smith drives.
	// 0 means unbounded.
	MaxConcurrentWorkflows int

	// FailFastCompensation, if true, stops compensation at the first
	// child Restore failure instead of attempting every restorable
	// operation. Compensation errors are then surfaced in an
	// AggregateError, as with ThrowOnCompensationError.
	FailFastCompensation bool

	// ThrowOnCompensationError, if true, compensation errors are
	// surfaced alongside the original workflow failure as an
	// AggregateError (original failure first). If it and
	// FailFastCompensation are both false, the original failure is
	// returned alone and compensation errors are reported only through
	// OperationRestoreFailed events.
	ThrowOnCompensationError bool
}

// DefaultOptions returns the engine's recommended defaults:
// EnableOutputChaining on, everything else off.
func DefaultOptions() Options {
	return Options{EnableOutputChaining: true}
}

// Option configures an Options value via the functional-options
// pattern.
type Option func(*Options)

// WithContinueOnError sets Options.ContinueOnError.
func WithContinueOnError(v bool) Option {
	return func(o *Options) { o.ContinueOnError = v }
}

// WithOutputChaining sets Options.EnableOutputChaining.
func WithOutputChaining(v bool) Option {
	return func(o *Options) { o.EnableOutputChaining = v }
}

// WithMaxConcurrentWorkflows sets Options.MaxConcurrentWorkflows.
func WithMaxConcurrentWorkflows(n int) Option {
	return func(o *Options) { o.MaxConcurrentWorkflows = n }
}

// WithFailFastCompensation sets Options.FailFastCompensation.
func WithFailFastCompensation(v bool) Option {
	return func(o *Options) { o.FailFastCompensation = v }
}

// WithThrowOnCompensationError sets Options.ThrowOnCompensationError.
func WithThrowOnCompensationError(v bool) Option {
	return func(o *Options) { o.ThrowOnCompensationError = v }
}

// ApplyOptions folds a list of Option onto DefaultOptions.
func ApplyOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return o
}
