// Package circuitbreaker provides per-operation circuit breakers for
// outbound calls to the strategy service. It wraps sony/gobreaker's
// two-step breaker so the caller can report each attempt's outcome after
// it has classified the backend response.
package circuitbreaker

import (
	"time"
)

// Default breaker settings.
const (
	DefaultFailureThreshold = 5
	DefaultOpenDuration     = 30 * time.Second
)

// Config holds configuration for a circuit breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold int

	// OpenDuration is how long the circuit stays open before admitting a
	// single probe.
	OpenDuration time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: DefaultFailureThreshold,
		OpenDuration:     DefaultOpenDuration,
	}
}

// normalize replaces unusable values with defaults.
func (c Config) normalize() Config {
	if c.FailureThreshold < 1 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.OpenDuration <= 0 {
		c.OpenDuration = DefaultOpenDuration
	}
	return c
}
