package apikey

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for API key validation.
type Metrics struct {
	validationTotal    *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
}

var (
	sharedMetrics     *Metrics
	sharedMetricsOnce sync.Once
)

// GetSharedMetrics returns the singleton Metrics instance registered with
// the default registerer.
func GetSharedMetrics() *Metrics {
	sharedMetricsOnce.Do(func() {
		sharedMetrics = NewMetrics("gateway", prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// NewMetrics creates a new Metrics instance. A nil registerer leaves the
// collectors unregistered.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}

	m := &Metrics{
		validationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "apikey",
				Name:      "validation_total",
				Help:      "Total number of API key validation attempts",
			},
			[]string{"status", "hash_alg"},
		),
		validationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "apikey",
				Name:      "validation_duration_seconds",
				Help:      "API key validation duration in seconds",
				// bcrypt comparisons dominate the upper buckets.
				Buckets: []float64{.00001, .0001, .001, .01, .05, .1, .25, .5, 1},
			},
			[]string{"status", "hash_alg"},
		),
	}

	if registerer != nil {
		// Re-registration of identical descriptors (tests) is ignored.
		_ = registerer.Register(m.validationTotal)
		_ = registerer.Register(m.validationDuration)
	}
	return m
}

// RecordValidation records a validation attempt.
func (m *Metrics) RecordValidation(status, hashAlg string, duration time.Duration) {
	m.validationTotal.WithLabelValues(status, hashAlg).Inc()
	m.validationDuration.WithLabelValues(status, hashAlg).Observe(duration.Seconds())
}
