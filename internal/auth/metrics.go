package auth

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the authentication gate.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
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
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "requests_total",
				Help:      "Total number of authentication decisions",
			},
			[]string{"mode", "result"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "request_duration_seconds",
				Help:      "Authentication decision duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"mode"},
		),
	}

	if registerer != nil {
		_ = registerer.Register(m.requestsTotal)
		_ = registerer.Register(m.requestDuration)
	}
	return m
}

// RecordRequest records one admit or reject decision.
func (m *Metrics) RecordRequest(mode, result string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(mode, result).Inc()
	m.requestDuration.WithLabelValues(mode).Observe(duration.Seconds())
}
