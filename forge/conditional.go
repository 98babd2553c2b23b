package forge

import (
	"context"
	"sync"
)

// Condition evaluates an input against a Foundry to pick a Conditional
// branch.
type Condition func(ctx context.Context, input any, f *Foundry) (bool, error)

// Conditional is a composite Operation that delegates to one of two
// child operations per a Condition, remembering which branch ran so
// that Restore replays the same branch rather than toggling across
// retries.
type Conditional struct {
	baseOperation

	condition Condition
	trueOp    Operation
	falseOp   Operation

	mu         sync.Mutex
	lastBranch *bool
	disposed   bool
}

// NewConditional builds a Conditional. falseOp may be nil, in which
// case Execute returns nil when the condition is false.
func NewConditional(id, name string, condition Condition, trueOp, falseOp Operation) *Conditional {
	return &Conditional{
		baseOperation: newBaseOperation(id, name, trueOp.SupportsRestore() && (falseOp == nil || falseOp.SupportsRestore())),
		condition:     condition,
		trueOp:        trueOp,
		falseOp:       falseOp,
	}
}

// NewSimpleConditional adapts a plain boolean-returning predicate
// (ignoring input/foundry/ctx) into a Condition, for callers with no
// need of the execution context.
func NewSimpleConditional(id, name string, predicate func() bool, trueOp, falseOp Operation) *Conditional {
	return NewConditional(id, name, func(context.Context, any, *Foundry) (bool, error) {
		return predicate(), nil
	}, trueOp, falseOp)
}

// Execute evaluates the condition and delegates to the chosen branch.
func (c *Conditional) Execute(ctx context.Context, input any, f *Foundry) (any, error) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil, newError(KindInvalidState, "conditional "+c.name+" is disposed")
	}
	c.mu.Unlock()

	branch, err := c.condition(ctx, input, f)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lastBranch = &branch
	c.mu.Unlock()

	if branch {
		return c.trueOp.Execute(ctx, input, f)
	}
	if c.falseOp != nil {
		return c.falseOp.Execute(ctx, input, f)
	}
	return nil, nil
}

// Restore routes to whichever branch Execute last remembered. Fails
// with NotSupported if Execute was never called or the engine invokes
// Restore directly outside compensation on a never-run Conditional.
func (c *Conditional) Restore(ctx context.Context, output any, f *Foundry) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return newError(KindInvalidState, "conditional "+c.name+" is disposed")
	}
	branch := c.lastBranch
	c.mu.Unlock()

	if branch == nil {
		return newError(KindNotSupported, "conditional "+c.name+" has no recorded branch to restore")
	}
	if *branch {
		if !c.trueOp.SupportsRestore() {
			return nil
		}
		return c.trueOp.Restore(ctx, output, f)
	}
	if c.falseOp == nil || !c.falseOp.SupportsRestore() {
		return nil
	}
	return c.falseOp.Restore(ctx, output, f)
}

// Dispose disposes both children exactly once, swallowing per-child
// panics. Idempotent.
func (c *Conditional) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.mu.Unlock()

	disposeOperation(c.trueOp)
	if c.falseOp != nil {
		disposeOperation(c.falseOp)
	}
}
