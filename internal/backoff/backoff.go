// Package backoff implements exponential reconnect backoff with jitter, for
// feed/broker wire clients that must recover from dropped connections
// without hammering the remote endpoint.
//
// Grounded on the teacher's pack-mate backoff.Backoff
// (Song-Mao-bittap-watch/internal/util/backoff/backoff.go): base * 2^attempt
// clamped to a max, then jittered by a fraction of itself.
package backoff

import (
	"math/rand"
	"time"
)

// Backoff computes successive reconnect delays.
type Backoff struct {
	base    time.Duration
	max     time.Duration
	jitter  float64
	attempt int
}

// New constructs a Backoff with the given base delay, max delay, and
// jitter fraction (0 to disable).
func New(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{base: base, max: max, jitter: jitter}
}

// NewDefault returns a Backoff with 1s base, 30s max, 20% jitter.
func NewDefault() *Backoff {
	return New(time.Second, 30*time.Second, 0.2)
}

// Next returns the next delay and advances the attempt counter.
func (b *Backoff) Next() time.Duration {
	multiplier := int64(1) << b.attempt
	delay := b.base * time.Duration(multiplier)
	if delay > b.max || delay <= 0 {
		delay = b.max
	}
	if b.jitter > 0 {
		factor := 1.0 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * factor)
	}
	b.attempt++
	return delay
}

// Reset zeroes the attempt counter, called after a successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}
