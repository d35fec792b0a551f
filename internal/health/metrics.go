package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for health checks.
type Metrics struct {
	checksTotal *prometheus.CounterVec
	checkStatus *prometheus.GaugeVec
}

var (
	healthMetricsInstance *Metrics
	healthMetricsOnce     sync.Once
)

// GetHealthMetrics returns the singleton health metrics instance.
func GetHealthMetrics() *Metrics {
	healthMetricsOnce.Do(func() {
		healthMetricsInstance = NewMetrics("gateway", prometheus.DefaultRegisterer)
	})
	return healthMetricsInstance
}

// NewMetrics creates health metrics registered with reg. A nil registerer
// leaves the collectors unregistered.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		checksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "checks_total",
				Help:      "Total number of health checks performed",
			},
			[]string{"check", "status"},
		),
		checkStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "check_up",
				Help:      "Whether the last run of a check reported UP (1) or not (0)",
			},
			[]string{"check"},
		),
	}
}

func (m *Metrics) recordCheck(name string, status Status) {
	m.checksTotal.WithLabelValues(name, string(status)).Inc()
	up := 0.0
	if status == StatusUp {
		up = 1
	}
	m.checkStatus.WithLabelValues(name).Set(up)
}
