package source

import (
	"context"
	"math/rand/v2"
	"time"
)

// Throttle spaces out fetches by a random delay in [Min, Max].
type Throttle struct {
	Min time.Duration
	Max time.Duration
}

// NewThrottle swaps the bounds if they arrive reversed.
func NewThrottle(minDelay, maxDelay time.Duration) *Throttle {
	if maxDelay < minDelay {
		minDelay, maxDelay = maxDelay, minDelay
	}
	return &Throttle{Min: minDelay, Max: maxDelay}
}

// Delay draws the next wait. It is never below floor.
func (t *Throttle) Delay(floor time.Duration) time.Duration {
	var d time.Duration
	if t != nil {
		d = t.Min
		if span := t.Max - t.Min; span > 0 {
			d += rand.N(span + 1)
		}
	}
	return max(d, floor)
}

// Wait sleeps for Delay(floor) or until ctx is done. A nil Throttle only
// honours floor.
func (t *Throttle) Wait(ctx context.Context, floor time.Duration) error {
	d := t.Delay(floor)
	if d <= 0 {
		return ctx.Err()
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
