package crawl

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// RetryConfig controls the backoff policy. The zero value is unusable;
// start from DefaultRetryConfig.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Retryable overrides the default retryable kind set when non-nil.
	Retryable map[Kind]bool
	// OnRetry, when set, is invoked before each retry sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig mirrors the platform-call defaults: three retries,
// 5s base delay, 60s ceiling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  5 * time.Second,
		MaxDelay:   60 * time.Second,
	}
}

func (c RetryConfig) retryable(kind Kind) bool {
	if c.Retryable != nil {
		return c.Retryable[kind]
	}
	switch kind {
	case KindRateLimited, KindNetwork, KindGeneric:
		return true
	default:
		return false
	}
}

// Retry invokes op, retrying classified-retryable failures with
// exponentially growing, jittered, capped delay. The original failure is
// propagated unchanged after a non-retryable kind or once attempts are
// exhausted, so callers can still branch on its kind. All state is local
// to the invocation; nothing is shared across concurrent callers.
func Retry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	attempt := 0
	for {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !cfg.retryable(KindOf(err)) {
			return err
		}
		attempt++
		if attempt > cfg.MaxRetries {
			return err
		}
		delay := cfg.delayFor(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
	}
}

// delayFor computes min(base * 2^(attempt-1) + uniform(0,1)s, max).
func (c RetryConfig) delayFor(attempt int) time.Duration {
	delay := c.BaseDelay << (attempt - 1)
	if delay > c.MaxDelay || delay <= 0 {
		return c.MaxDelay
	}
	delay += randomJitter(time.Second)
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
