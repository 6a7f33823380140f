package app

import (
	"context"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
)

// Default reconnect backoff values.
const (
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 10 * time.Second
)

// Backoff implements exponential backoff with jitter between reconnect attempts.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
	clock   clockwork.Clock
}

// NewBackoff creates a backoff starting at initial and capped at max.
func NewBackoff(initial, max time.Duration, clock clockwork.Clock) *Backoff {
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	if max < initial {
		max = initial
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Backoff{
		initial: initial,
		max:     max,
		current: initial,
		clock:   clock,
	}
}

// Next returns the jittered delay for this attempt and grows the next one.
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

// Wait sleeps for the next delay. It returns false if ctx ended first.
func (b *Backoff) Wait(ctx context.Context) bool {
	select {
	case <-b.clock.After(b.Next()):
		return true
	case <-ctx.Done():
		return false
	}
}

// Reset resets the backoff to the initial duration.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current returns the base of the next delay, before jitter.
func (b *Backoff) Current() time.Duration {
	return b.current
}
