package proxy

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/strategyforge/gateway/internal/backend"
)

var (
	// ForwardTotal counts forwarded operations by response source.
	ForwardTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "proxy",
			Name:      "forward_total",
			Help:      "Total number of forwarded operations by response source",
		},
		[]string{"operation", "source"},
	)

	// ForwardDuration measures the whole forward, retries included.
	ForwardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gateway",
			Subsystem: "proxy",
			Name:      "forward_duration_seconds",
			Help:      "Duration of forwarded operations including retries",
			Buckets: []float64{
				.005, .01, .025, .05, .1, .25, .5,
				1, 2.5, 5, 10, 30, 60, 120,
			},
		},
		[]string{"operation"},
	)

	// FallbacksTotal counts fallback invocations.
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "proxy",
			Name:      "fallbacks_total",
			Help:      "Total number of fallback responses by reason",
		},
		[]string{"operation", "reason"},
	)
)

// RecordForward records a completed forward.
func RecordForward(operation string, source Source, elapsed time.Duration) {
	ForwardTotal.WithLabelValues(operation, source.String()).Inc()
	ForwardDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordFallback records a fallback invocation.
func RecordFallback(operation, reason string) {
	FallbacksTotal.WithLabelValues(operation, reason).Inc()
}

func fallbackReason(cause error) string {
	switch {
	case errors.Is(cause, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(cause, backend.ErrTimeout):
		return "timeout"
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "transport_failure"
	}
}
