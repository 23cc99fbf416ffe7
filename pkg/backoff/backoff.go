// Package backoff implements truncated exponential backoff with jitter for
// reconnect loops.
package backoff

import (
	"math/rand"
	"time"
)

const multiplier = 2.0

// Backoff yields successive wait durations. It is not safe for concurrent use.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
	rnd     *rand.Rand
}

// New returns a Backoff starting at initial and capped at maxWait.
func New(initial, maxWait time.Duration) *Backoff {
	return &Backoff{
		initial: initial,
		max:     maxWait,
		current: initial,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // not crypto
	}
}

// Next returns the current backoff duration and advances the internal state.
func (b *Backoff) Next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (b.rnd.Float64()*2 - 1))
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * multiplier)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset returns the backoff to its initial duration.
func (b *Backoff) Reset() {
	b.current = b.initial
}
