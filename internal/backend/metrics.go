package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendRequestsTotal counts backend calls by outcome.
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of calls to the strategy service",
		},
		[]string{"method", "outcome"},
	)

	// BackendRequestDuration measures backend call latency.
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Duration of calls to the strategy service in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method"},
	)
)

func recordCall(method string, outcome Outcome, elapsed time.Duration) {
	BackendRequestsTotal.WithLabelValues(method, outcome.Kind.String()).Inc()
	BackendRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
