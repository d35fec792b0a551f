package retry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetryAttemptsTotal counts total retry attempts.
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts",
		},
		[]string{"operation", "attempt"},
	)

	// RetryExhaustedTotal counts calls that used up every attempt.
	RetryExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_exhausted_total",
			Help: "Total number of operations that failed after all retry attempts",
		},
		[]string{"operation"},
	)

	// RetryBackoffDuration measures backoff wait times.
	RetryBackoffDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retry_backoff_duration_seconds",
			Help:    "Duration of backoff waits in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)
)

// RecordRetryAttempt records a retry attempt.
func RecordRetryAttempt(operation string, attempt int) {
	RetryAttemptsTotal.WithLabelValues(operation, strconv.Itoa(attempt)).Inc()
}

// RecordRetryExhausted records a call that ran out of attempts.
func RecordRetryExhausted(operation string) {
	RetryExhaustedTotal.WithLabelValues(operation).Inc()
}

// RecordBackoffDuration records a backoff wait duration.
func RecordBackoffDuration(operation string, durationSeconds float64) {
	RetryBackoffDuration.WithLabelValues(operation).Observe(durationSeconds)
}
