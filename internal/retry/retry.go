// Package retry provides an explicit retry policy with exponential backoff
// for transient failures. The policy is a value passed into call sites, not
// implicit cross-cutting behavior, so retry semantics stay testable in
// isolation.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults applied by Do when a Policy field is unset.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
	DefaultMultiplier   = 2.0
)

var (
	// ErrMaxAttemptsExceeded is returned when all attempts failed with a
	// retryable error.
	ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")
	// ErrCancelled is returned when the context is cancelled between
	// attempts.
	ErrCancelled = errors.New("retry cancelled")
)

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
	// IsRetryable decides whether an error warrants another attempt.
	// When nil, no error is retried.
	IsRetryable func(error) bool
}

// DefaultPolicy returns a policy with the package defaults and the given
// retryable predicate.
func DefaultPolicy(isRetryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		IsRetryable:  isRetryable,
	}
}

// normalized fills unset fields with defaults.
func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Multiplier <= 0 {
		p.Multiplier = DefaultMultiplier
	}
	return p
}

// Do executes fn with the policy's retry semantics. Non-retryable errors
// are returned immediately. The attempt sequence for one call is strictly
// sequential; sleeps respect context cancellation.
func Do(ctx context.Context, p Policy, fn func() error) error {
	p = p.normalized()

	var lastErr error
	delay := p.InitialDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if p.IsRetryable == nil || !p.IsRetryable(err) {
			return err
		}

		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, p.MaxAttempts, lastErr)
}
