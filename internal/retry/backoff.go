// Package retry provides the pacing and stop policies that drive
// connection attempts: exponential backoff between attempts, a circuit
// breaker shared across sessions, and composable decision functions.
package retry

import (
	"math"
	"math/rand"
	"time"

	"goattempt/attempt"
)

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff implements exponential backoff with optional jitter.  It is
// an [attempt.Pacer]: the engine asks it how long to wait after each
// failed attempt.
type Backoff struct {
	// InitialDelay is the pause after the first failed attempt.  Zero
	// means no pause at all, so attempts follow each other directly.
	InitialDelay time.Duration
	// MaxDelay caps the backoff duration (default 60s).
	MaxDelay time.Duration
	// Multiplier increases the delay each attempt (default 2.0).
	Multiplier float64
	// Jitter adds ±25% randomisation to prevent thundering herd.
	Jitter bool
}

var _ attempt.Pacer = (*Backoff)(nil)

// DefaultBackoff returns a reasonable default configuration.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Delay returns the pause after failed attempt n (1-based):
// InitialDelay × Multiplier^(n-1), capped at MaxDelay.
func (b *Backoff) Delay(n int) time.Duration {
	if b == nil || b.InitialDelay <= 0 {
		return 0
	}
	if n < 1 {
		n = 1
	}
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	maxDelay := b.MaxDelay
	if maxDelay == 0 {
		maxDelay = 60 * time.Second
	}

	d := float64(b.InitialDelay) * math.Pow(multiplier, float64(n-1))
	delay := maxDelay
	if d < float64(maxDelay) {
		delay = time.Duration(d)
	}

	if b.Jitter {
		delay = addJitter(delay)
	}
	return delay
}

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	result := float64(d) + delta
	return time.Duration(math.Max(result, float64(time.Millisecond)))
}
