package lifecycle

import (
	"context"
	"math/rand"
	"time"
)

// Backoff implements exponential backoff with jitter.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a new backoff with the given initial and max durations.
func NewBackoff(initial, max time.Duration) *Backoff {
	if max < initial {
		max = initial
	}
	return &Backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Next returns the jittered delay for the current step and advances the step.
func (b *Backoff) Next() time.Duration {
	// ±20%
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	d := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Wait sleeps for the next delay or until ctx is done.
func (b *Backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Reset resets the backoff to the initial duration.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current returns the current backoff duration.
func (b *Backoff) Current() time.Duration {
	return b.current
}
