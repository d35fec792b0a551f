package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/strategyforge/gateway/internal/cache"
	"github.com/strategyforge/gateway/internal/circuitbreaker"
	"github.com/strategyforge/gateway/internal/health"
	"github.com/strategyforge/gateway/internal/observability"
	"github.com/strategyforge/gateway/internal/proxy"
)

// Inbound paths.
const (
	PathGenerateStrategy = "/api/v1/strategies/generate"
	PathRunBacktest      = "/api/v1/backtest/run"
	PathTopStrategies    = "/api/v1/strategies/top"
	PathBackendHealth    = "/api/v1/health"

	PathActuatorHealth          = "/actuator/health"
	PathActuatorCircuitBreakers = "/actuator/circuitbreakers"
	PathActuatorPrometheus      = "/actuator/prometheus"
)

// CacheStatusHeader tells whether a cacheable response was served from the
// response cache.
const CacheStatusHeader = "X-Cache"

// Forwarder runs an operation against the strategy service.
type Forwarder interface {
	Forward(ctx context.Context, operation string, req proxy.Request) (proxy.Response, error)
}

// BreakerInspector exposes the state of the circuit breakers.
type BreakerInspector interface {
	Snapshots() []circuitbreaker.Snapshot
}

// Router binds the gateway routes to the forwarder.
type Router struct {
	forwarder      Forwarder
	breakers       BreakerInspector
	cache          cache.Cache
	cacheTTL       time.Duration
	metricsHandler http.Handler
	health         *health.Checker
	logger         observability.Logger
}

// RouterOption is a functional option for configuring the router.
type RouterOption func(*Router)

// WithRouterLogger sets the logger for the router.
func WithRouterLogger(logger observability.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithBreakers enables the breaker inspection endpoint.
func WithBreakers(breakers BreakerInspector) RouterOption {
	return func(r *Router) {
		r.breakers = breakers
	}
}

// WithResponseCache caches successful top strategies responses for ttl.
func WithResponseCache(c cache.Cache, ttl time.Duration) RouterOption {
	return func(r *Router) {
		r.cache = c
		r.cacheTTL = ttl
	}
}

// WithHealthChecker sets the checker behind the gateway health endpoint.
func WithHealthChecker(checker *health.Checker) RouterOption {
	return func(r *Router) {
		r.health = checker
	}
}

// WithMetricsHandler sets the handler of the Prometheus endpoint.
func WithMetricsHandler(h http.Handler) RouterOption {
	return func(r *Router) {
		r.metricsHandler = h
	}
}

// NewRouter creates a router on forwarder.
func NewRouter(forwarder Forwarder, opts ...RouterOption) *Router {
	r := &Router{
		forwarder: forwarder,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.health == nil {
		r.health = health.NewChecker("")
	}
	return r
}

// Register installs the routes on engine.
func (r *Router) Register(engine *gin.Engine) {
	engine.POST(PathGenerateStrategy, r.generateStrategy)
	engine.POST(PathRunBacktest, r.runBacktest)
	engine.GET(PathTopStrategies, r.topStrategies)
	engine.GET(PathBackendHealth, r.backendHealth)

	engine.GET(PathActuatorHealth, r.health.Handler())
	if r.breakers != nil {
		engine.GET(PathActuatorCircuitBreakers, r.circuitBreakers)
	}
	if r.metricsHandler != nil {
		engine.GET(PathActuatorPrometheus, gin.WrapH(r.metricsHandler))
	}

	engine.NoRoute(func(c *gin.Context) {
		writeEnvelope(c, http.StatusNotFound, "Not Found", "No route matched the request")
	})
	engine.NoMethod(func(c *gin.Context) {
		writeEnvelope(c, http.StatusMethodNotAllowed, "Method Not Allowed",
			c.Request.Method+" is not supported for "+c.Request.URL.Path)
	})
}

// forward runs operation and writes its response.
func (r *Router) forward(c *gin.Context, operation string, req proxy.Request) (proxy.Response, bool) {
	resp, err := r.forwarder.Forward(c.Request.Context(), operation, req)
	if err != nil {
		r.logger.WithContext(c.Request.Context()).Error("forward failed",
			observability.String("operation", operation),
			observability.Error(err),
		)
		writeEnvelope(c, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
		return proxy.Response{}, false
	}
	writeResponse(c, resp)
	return resp, true
}

func writeResponse(c *gin.Context, resp proxy.Response) {
	c.Data(resp.StatusCode, "application/json", resp.Body)
}

func writeEnvelope(c *gin.Context, status int, summary, detail string) {
	c.Data(status, "application/json", proxy.Envelope(summary, detail))
}
