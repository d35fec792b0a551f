// Package observability provides logging, metrics, and tracing
// functionality for the gateway.
//
// # Logging
//
// The Logger interface wraps zap with a small, stable surface:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("request forwarded",
//	    observability.String("operation", "generate-strategy"),
//	    observability.Int("status", 200),
//	)
//
// # Metrics
//
// HTTP server metrics are registered with a Prometheus registerer and
// served by the actuator endpoint:
//
//	metrics := observability.NewMetrics("gateway", prometheus.DefaultRegisterer)
//	metrics.RecordRequest("GET", "/api/v1/strategies/top", 200, elapsed)
//
// # Tracing
//
// OpenTelemetry tracing with optional OTLP gRPC export. When tracing is
// disabled the global no-op provider is used, so spans are cheap to create
// unconditionally.
package observability
