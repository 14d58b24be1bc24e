// Package backoff provides retry delay policies shared by the durable
// operation queue and the realtime channel manager.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy decides how long to wait before the next retry attempt.
type Policy interface {
	// NextDelay returns the delay before the next attempt.
	// attempt is 0-based. The second return value is false once the
	// policy's retry budget is exhausted.
	NextDelay(attempt int, lastErr error) (time.Duration, bool)

	// Reset clears any per-sequence state (called after a success).
	Reset()
}

// Exponential implements exponential backoff with optional jitter.
type Exponential struct {
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// Multiplier is applied per attempt.
	Multiplier float64

	// MaxRetries bounds the number of attempts (0 means unbounded).
	MaxRetries int

	// Jitter randomizes the delay to avoid synchronized retries.
	Jitter bool

	// JitterFactor is the maximum jitter as a fraction of the delay.
	JitterFactor float64
}

// NewExponential returns an Exponential policy with the defaults used
// across the engine: 1s initial, 30s cap, doubling, 30% jitter,
// unbounded attempts.
func NewExponential() *Exponential {
	return &Exponential{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		JitterFactor: 0.3,
	}
}

func (p *Exponential) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if p.MaxRetries > 0 && attempt >= p.MaxRetries {
		return 0, false
	}

	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter && p.JitterFactor > 0 {
		//nolint:gosec // math/rand is fine for jitter, not security-critical
		delay += delay * p.JitterFactor * (2*rand.Float64() - 1)
		if delay < 0 {
			delay = float64(p.InitialDelay)
		}
	}

	return time.Duration(delay), true
}

func (p *Exponential) Reset() {}

// Fixed retries with a constant delay.
type Fixed struct {
	Delay      time.Duration
	MaxRetries int
}

func NewFixed(delay time.Duration, maxRetries int) *Fixed {
	return &Fixed{Delay: delay, MaxRetries: maxRetries}
}

func (p *Fixed) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if p.MaxRetries > 0 && attempt >= p.MaxRetries {
		return 0, false
	}
	return p.Delay, true
}

func (p *Fixed) Reset() {}
