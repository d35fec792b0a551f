package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff defines the interface for backoff strategies.
type Backoff interface {
	// Next returns the duration to wait before the given retry attempt
	// (0 for the first retry).
	Next(attempt int) time.Duration
}

// ExponentialBackoff implements capped exponential backoff with additive
// jitter. The jitter is added on top of the exponential base, never
// subtracted, so the wait is at least initial*factor^attempt until the cap.
type ExponentialBackoff struct {
	initial time.Duration
	max     time.Duration
	factor  float64
	jitter  float64

	mu   sync.Mutex
	rand *rand.Rand
}

// NewExponentialBackoff creates a new exponential backoff.
func NewExponentialBackoff(initial, max time.Duration, factor, jitter float64) *ExponentialBackoff {
	if factor < 1 {
		factor = 1
	}
	if jitter < 0 {
		jitter = 0
	}
	if max < initial {
		max = initial
	}
	return &ExponentialBackoff{
		initial: initial,
		max:     max,
		factor:  factor,
		jitter:  jitter,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // jitter only
	}
}

// Next implements Backoff.
func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	backoff := float64(b.initial) * math.Pow(b.factor, float64(attempt))

	if b.jitter > 0 {
		b.mu.Lock()
		backoff += backoff * b.jitter * b.rand.Float64()
		b.mu.Unlock()
	}

	if backoff > float64(b.max) || math.IsInf(backoff, 0) {
		backoff = float64(b.max)
	}

	return time.Duration(backoff)
}

// ConstantBackoff implements constant backoff.
type ConstantBackoff struct {
	interval time.Duration
}

// NewConstantBackoff creates a new constant backoff.
func NewConstantBackoff(interval time.Duration) *ConstantBackoff {
	return &ConstantBackoff{interval: interval}
}

// Next implements Backoff.
func (b *ConstantBackoff) Next(int) time.Duration {
	return b.interval
}

// Schedule hands out the waits of a single call. Each wait is at least as
// long as the one before it, whatever the underlying backoff returns.
// A Schedule is not safe for concurrent use; create one per call.
type Schedule struct {
	backoff Backoff
	attempt int
	prev    time.Duration
}

// NewSchedule creates a schedule over b.
func NewSchedule(b Backoff) *Schedule {
	return &Schedule{backoff: b}
}

// Next returns the wait before the next retry.
func (s *Schedule) Next() time.Duration {
	d := s.backoff.Next(s.attempt)
	s.attempt++
	if d < s.prev {
		d = s.prev
	}
	s.prev = d
	return d
}

// Attempt returns how many waits have been handed out.
func (s *Schedule) Attempt() int {
	return s.attempt
}
