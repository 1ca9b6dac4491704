// Package retry wraps operations with bounded exponential backoff and
// jitter. The backoff shape follows the RPC client's inline loop, extracted
// so every execution method shares one policy surface.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy controls backoff behavior for one call site.
type Policy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	JitterRange time.Duration
}

// DefaultPolicy is a sane starting point; per-API policies come from
// configuration.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		JitterRange: 250 * time.Millisecond,
	}
}

// ExhaustedError wraps the last underlying error after all retries failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it immediately instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op, retrying on failure per the policy. The delay before attempt
// n (n ≥ 2) is min(maxDelay, base*multiplier^(n-2)) plus uniform jitter.
// Permanent errors and context cancellation stop retries immediately.
// Exhaustion returns an *ExhaustedError wrapping the last error.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	var lastErr error

	attempts := policy.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delayFor(policy, attempt-1)):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}

	return &ExhaustedError{Attempts: attempts, Last: lastErr}
}

// delayFor computes the backoff before retry number n (1-based).
func delayFor(policy Policy, n int) time.Duration {
	base := float64(policy.BaseDelay)
	if base <= 0 {
		base = float64(500 * time.Millisecond)
	}
	mult := policy.Multiplier
	if mult <= 1 {
		mult = 2.0
	}

	delay := base * math.Pow(mult, float64(n-1))
	if max := float64(policy.MaxDelay); max > 0 && delay > max {
		delay = max
	}
	if policy.JitterRange > 0 {
		delay += float64(rand.Int63n(int64(policy.JitterRange)))
	}
	return time.Duration(delay)
}
