// Package ratelimit provides operation-middleware that throttles and
// retries operation execution. Throttling is built on
// golang.org/x/time/rate, the ecosystem's standard limiter. Retry
// uses exponential backoff with jitter, expressed as a generic
// operation-middleware so it composes with any forge.Operation instead
// of being wired into the engine itself.
package ratelimit

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/forgekit/forge"
)

// Limiter returns an OperationMiddleware that blocks until limiter
// admits the call (or ctx is cancelled first), then delegates to next.
// Registering it on a Foundry throttles every step in the workflow;
// registering it only where needed requires wrapping a single
// Operation before adding it to the Workflow.
func Limiter(limiter *rate.Limiter) forge.OperationMiddleware {
	return func(op forge.Operation, next forge.OperationNext) forge.OperationNext {
		return func(ctx context.Context, input any, f *forge.Foundry) (any, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return next(ctx, input, f)
		}
	}
}

// RetryPolicy configures exponential backoff with jitter for transient
// operation failures.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of execution attempts,
	// including the first. Must be >= 1.
	MaxAttempts int
	// BaseDelay is the starting backoff delay.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth of the backoff delay.
	MaxDelay time.Duration
	// Retryable decides whether a given error warrants another
	// attempt. A nil Retryable never retries.
	Retryable func(error) bool
}

func (p RetryPolicy) computeBackoff(attempt int) time.Duration {
	delay := p.BaseDelay * time.Duration(int64(1)<<uint(attempt))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.BaseDelay <= 0 {
		return delay
	}
	jitter := time.Duration(rand.Int63n(int64(p.BaseDelay))) // #nosec G404 -- retry jitter, not security-sensitive
	return delay + jitter
}

// Retry returns an OperationMiddleware that re-invokes next up to
// policy.MaxAttempts times while policy.Retryable accepts the returned
// error, sleeping with exponential backoff between attempts.
// Cancellation errors are never retried regardless of Retryable.
func Retry(policy RetryPolicy) forge.OperationMiddleware {
	return func(op forge.Operation, next forge.OperationNext) forge.OperationNext {
		return func(ctx context.Context, input any, f *forge.Foundry) (any, error) {
			var lastErr error
			attempts := policy.MaxAttempts
			if attempts < 1 {
				attempts = 1
			}
			for attempt := 0; attempt < attempts; attempt++ {
				output, err := next(ctx, input, f)
				if err == nil {
					return output, nil
				}
				lastErr = err
				if forge.IsCancellation(err) {
					return nil, err
				}
				if policy.Retryable == nil || !policy.Retryable(err) {
					return nil, err
				}
				if attempt == attempts-1 {
					break
				}
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(policy.computeBackoff(attempt)):
				}
			}
			return nil, lastErr
		}
	}
}
