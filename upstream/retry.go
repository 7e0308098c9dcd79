package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry defaults per the portal client: base 2s doubling, 3 attempts total.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 2 * time.Second
)

// RetryPolicy is a bounded exponential-backoff retry budget shared by both
// transports. MaxAttempts counts total attempts: a policy of 3 gives up
// after the third failure, it does not try a fourth time.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
}

// DefaultRetryPolicy returns the stock policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Base: DefaultBackoffBase}
}

// Permanent marks an error as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op under the policy. The returned error is the last attempt's
// error wrapped in ErrRetriesExhausted, or the permanent/context error
// as-is.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	base := p.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = base * 16
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	var lastErr error
	wrapped := func() error {
		lastErr = op()
		return lastErr
	}

	err := backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}
