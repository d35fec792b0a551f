package jwt

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for JWT operations.
type Metrics struct {
	validationTotal     *prometheus.CounterVec
	validationDuration  *prometheus.HistogramVec
	discoveryTotal      *prometheus.CounterVec
	jwksRefreshTotal    *prometheus.CounterVec
	jwksRefreshDuration prometheus.Histogram
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

	m := &Metrics{}

	m.validationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jwt",
			Name:      "validation_total",
			Help:      "Total number of JWT validation attempts",
		},
		[]string{"status"},
	)

	m.validationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jwt",
			Name:      "validation_duration_seconds",
			Help:      "JWT validation duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
		[]string{"status"},
	)

	m.discoveryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jwt",
			Name:      "discovery_total",
			Help:      "Total number of OIDC discovery attempts",
		},
		[]string{"status"},
	)

	m.jwksRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jwt",
			Name:      "jwks_refresh_total",
			Help:      "Total number of JWKS refresh attempts",
		},
		[]string{"status"},
	)

	m.jwksRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jwt",
			Name:      "jwks_refresh_duration_seconds",
			Help:      "JWKS refresh duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	if registerer != nil {
		for _, c := range []prometheus.Collector{
			m.validationTotal,
			m.validationDuration,
			m.discoveryTotal,
			m.jwksRefreshTotal,
			m.jwksRefreshDuration,
		} {
			_ = registerer.Register(c)
		}
	}
	return m
}

// RecordValidation records a token validation.
func (m *Metrics) RecordValidation(status string, duration time.Duration) {
	m.validationTotal.WithLabelValues(status).Inc()
	m.validationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordDiscovery records an OIDC discovery attempt.
func (m *Metrics) RecordDiscovery(status string) {
	m.discoveryTotal.WithLabelValues(status).Inc()
}

// RecordJWKSRefresh records a JWKS refresh.
func (m *Metrics) RecordJWKSRefresh(status string, duration time.Duration) {
	m.jwksRefreshTotal.WithLabelValues(status).Inc()
	m.jwksRefreshDuration.Observe(duration.Seconds())
}
