// Package retry runs operations under a bounded, fixed-delay retry policy
package retry

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Policy defines how to retry an operation.
// MaxAttempts counts every attempt, the first one included.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy retries a failed call twice, five seconds apart
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	Delay:       5 * time.Second,
}

// IsTransientFunc defines if an error is transient and should be retried
type IsTransientFunc func(error) bool

// OnRetryFunc is called before every retry with the attempt that just failed
type OnRetryFunc func(attempt int, err error)

// Do runs fn until it succeeds, returns a non transient error, or the policy
// runs out of attempts. The last error is returned on exhaustion.
func Do[T any](ctx context.Context, policy Policy, isTransient IsTransientFunc, onRetry OnRetryFunc, fn func(ctx context.Context) (T, error)) (T, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	builder := retrypolicy.NewBuilder[T]().
		HandleIf(func(_ T, err error) bool {
			return err != nil && isTransient(err)
		}).
		WithMaxAttempts(policy.MaxAttempts).
		ReturnLastFailure()
	if policy.Delay > 0 {
		builder = builder.WithDelay(policy.Delay)
	}
	if onRetry != nil {
		builder = builder.OnRetry(func(e failsafe.ExecutionEvent[T]) {
			onRetry(e.Attempts(), e.LastError())
		})
	}

	return failsafe.With[T](builder.Build()).
		WithContext(ctx).
		GetWithExecution(func(exec failsafe.Execution[T]) (T, error) {
			return fn(exec.Context())
		})
}
