package crawl

import (
	"context"
	"math/rand"
	"time"
)

// throttleSpread is the upper-bound multiplier for the randomized delay:
// each wait is drawn uniformly from [base, base*throttleSpread].
const throttleSpread = 1.6

// Throttle inserts a randomized courtesy delay before an outbound call to
// stay under informal upstream rate limits. It is not a hard limiter and
// gives no guarantee against bursts from concurrent workers; each Wait is
// independent and blocks only its own caller.
type Throttle struct {
	base time.Duration
}

// NewThrottle builds a throttle around the given base delay. A
// non-positive base disables the delay entirely, which is how tests
// override it to zero.
func NewThrottle(base time.Duration) *Throttle {
	return &Throttle{base: base}
}

// Wait sleeps the randomized delay, returning early if ctx finishes.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.base <= 0 {
		return nil
	}
	return sleep(ctx, t.delay())
}

func (t *Throttle) delay() time.Duration {
	spread := time.Duration(float64(t.base) * (throttleSpread - 1))
	return t.base + time.Duration(rand.Int63n(int64(spread)+1))
}
