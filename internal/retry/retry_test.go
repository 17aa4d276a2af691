package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/finfetch/internal/retry"
)

var errTransient = errors.New("transient")

func fastPolicy(isRetryable func(error) bool) retry.Policy {
	return retry.Policy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		IsRetryable:  isRetryable,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(nil), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(func(error) bool { return true }), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(func(error) bool { return true }), func() error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, retry.ErrMaxAttemptsExceeded)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDoNonRetryableFailsFast(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(func(err error) bool {
		return !errors.Is(err, permanent)
	}), func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.NotErrorIs(t, err, retry.ErrMaxAttemptsExceeded)
	assert.Equal(t, 1, calls)
}

func TestDoNilPredicateNeverRetries(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(nil), func() error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDoRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := fastPolicy(func(error) bool { return true })
	p.InitialDelay = time.Hour // cancellation must interrupt the sleep

	done := make(chan error, 1)
	go func() {
		done <- retry.Do(ctx, p, func() error { return errTransient })
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, retry.ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := retry.DefaultPolicy(nil)
	assert.Equal(t, retry.DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, retry.DefaultMultiplier, p.Multiplier)
}
