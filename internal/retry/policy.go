package retry

import (
	"context"
	"net/http"
	"time"
)

// Config holds the tunables of a retry policy.
type Config struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	Multiplier        float64
	Jitter            float64
	RetryableStatuses []int
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        2,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		Multiplier:        2.0,
		Jitter:            0.2,
		RetryableStatuses: DefaultRetryableStatusCodes(),
	}
}

// Policy decides whether and when to retry a backend attempt. It is
// immutable and safe for concurrent use.
type Policy struct {
	maxRetries int
	backoff    Backoff
	statuses   *StatusCodeCondition
	condition  RetryCondition
}

// NewPolicy creates a policy from cfg. A negative MaxRetries is treated as 0.
func NewPolicy(cfg Config) *Policy {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	statuses := RetryOnStatusCodes(cfg.RetryableStatuses...)
	return &Policy{
		maxRetries: cfg.MaxRetries,
		backoff:    NewExponentialBackoff(cfg.InitialBackoff, cfg.MaxBackoff, cfg.Multiplier, cfg.Jitter),
		statuses:   statuses,
		condition:  RetryOnAny(RetryOnTransportErrors(), statuses),
	}
}

// MaxRetries returns the number of additional attempts after the first.
func (p *Policy) MaxRetries() int {
	return p.maxRetries
}

// ShouldRetry reports whether an attempt that ended with err (transport
// failure) or statusCode (backend answer) may be repeated. Client errors
// are never retried.
func (p *Policy) ShouldRetry(err error, statusCode int) bool {
	if err == nil && statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError {
		return false
	}
	return p.condition.ShouldRetry(err, statusCode)
}

// IsRetryableStatus reports whether statusCode is one of the retryable 5xx.
func (p *Policy) IsRetryableStatus(statusCode int) bool {
	return p.statuses.Contains(statusCode)
}

// NewSchedule returns the backoff schedule for one call.
func (p *Policy) NewSchedule() *Schedule {
	return NewSchedule(p.backoff)
}

// Wait blocks for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
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
