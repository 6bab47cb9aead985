package resilience

import "context"

// Guard combines a breaker and a retry policy for one provider operation.
// The breaker sees the outcome of the whole retry sequence, not each attempt.
type Guard struct {
	Breaker *CircuitBreaker
	Retry   RetryConfig
}

// NewGuard builds a Guard whose retries are logged under provider/operation.
func NewGuard(breaker *CircuitBreaker, retry RetryConfig, provider, operation string) Guard {
	if retry.OnRetry == nil {
		retry.OnRetry = RetryLogger(provider, operation)
	}
	return Guard{Breaker: breaker, Retry: retry}
}

// Call runs fn under g. A zero Guard calls fn once.
func Call[T any](ctx context.Context, g Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	retried := func(ctx context.Context) (T, error) {
		if g.Retry.MaxAttempts == 0 {
			return fn(ctx)
		}
		return DoVal(ctx, g.Retry, fn)
	}
	if g.Breaker == nil {
		return retried(ctx)
	}
	return ExecuteVal(ctx, g.Breaker, retried)
}
