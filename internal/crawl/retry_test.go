package crawl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}
}

func TestRetry_SucceedsWithinBudget(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(3), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return Errorf(KindNetwork, "transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustionPropagatesOriginalError(t *testing.T) {
	t.Parallel()

	original := FromStatus(429, "rate limited")
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(2), func(context.Context) error {
		attempts++
		return original
	})
	// The failure must come back unchanged so callers can branch on kind.
	require.Same(t, original, err)
	assert.Equal(t, 3, attempts) // initial call + 2 retries
}

func TestRetry_NonRetryableReturnsImmediately(t *testing.T) {
	t.Parallel()

	for _, kind := range []Kind{KindAuthFailed, KindParse} {
		attempts := 0
		err := Retry(context.Background(), fastRetryConfig(3), func(context.Context) error {
			attempts++
			return Errorf(kind, "permanent")
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts, "kind %s", kind)
		assert.Equal(t, kind, KindOf(err))
	}
}

func TestRetry_UnclassifiedErrorIsRetryable(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(1), func(context.Context) error {
		attempts++
		if attempts == 1 {
			return assert.AnError
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetry_AttemptCounterIsInvocationScoped(t *testing.T) {
	t.Parallel()

	cfg := fastRetryConfig(1)
	for n := 0; n < 3; n++ {
		attempts := 0
		err := Retry(context.Background(), cfg, func(context.Context) error {
			attempts++
			if attempts == 1 {
				return Errorf(KindNetwork, "transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	t.Parallel()

	cfg := fastRetryConfig(2)
	var seen []int
	cfg.OnRetry = func(attempt int, _ time.Duration, _ error) {
		seen = append(seen, attempt)
	}
	_ = Retry(context.Background(), cfg, func(context.Context) error {
		return Errorf(KindNetwork, "always")
	})
	assert.Equal(t, []int{1, 2}, seen)
}

func TestRetry_ContextCancelStopsRetrying(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	original := Errorf(KindNetwork, "transient")
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	err := Retry(ctx, cfg, func(context.Context) error { return original })
	require.Same(t, original, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDelayFor_MonotonicAndCapped(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{
		MaxRetries: 10,
		BaseDelay:  5 * time.Second,
		MaxDelay:   60 * time.Second,
	}
	// Jitter is at most one second, so comparing floor(attempt) against
	// ceil(attempt-1) proves non-decreasing growth.
	prevCeil := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := cfg.delayFor(attempt)
		assert.LessOrEqual(t, d, cfg.MaxDelay)
		floor := cfg.BaseDelay << (attempt - 1)
		if floor > cfg.MaxDelay {
			floor = cfg.MaxDelay
		}
		assert.GreaterOrEqual(t, d, min(floor, cfg.MaxDelay))
		assert.GreaterOrEqual(t, d+time.Second, prevCeil)
		prevCeil = d
	}
}

func TestDelayFor_OverflowSafe(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{MaxRetries: 100, BaseDelay: time.Second, MaxDelay: time.Minute}
	// Shifting far enough to overflow must still return the ceiling.
	assert.Equal(t, time.Minute, cfg.delayFor(70))
}
