// Package health provides the gateway liveness endpoint and the checks
// that feed it.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// Status represents the health status.
type Status string

const (
	// StatusUp indicates the gateway is serving normally.
	StatusUp Status = "UP"
	// StatusDegraded indicates the gateway serves but a dependency is
	// impaired, so some answers are fallbacks.
	StatusDegraded Status = "DEGRADED"
	// StatusDown indicates the gateway cannot serve.
	StatusDown Status = "DOWN"
	// StatusOutOfService indicates the gateway is draining for shutdown.
	StatusOutOfService Status = "OUT_OF_SERVICE"
)

// Response is the body of the health endpoint.
type Response struct {
	Status    Status           `json:"status"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Check represents an individual health check result.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckFunc is a function that performs a health check.
type CheckFunc func(ctx context.Context) Check

// Checker aggregates named checks into one status.
type Checker struct {
	version   string
	startTime time.Time
	checks    map[string]CheckFunc
	mu        sync.RWMutex
	draining  atomic.Bool
	metrics   *Metrics
}

// NewChecker creates a new health checker.
func NewChecker(version string) *Checker {
	return &Checker{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]CheckFunc),
		metrics:   GetHealthMetrics(),
	}
}

// RegisterCheck registers a health check function.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// SetDraining marks the gateway as shutting down. A draining gateway
// reports OUT_OF_SERVICE so load balancers stop sending traffic.
func (c *Checker) SetDraining(draining bool) {
	c.draining.Store(draining)
}

// IsDraining reports whether SetDraining(true) was called.
func (c *Checker) IsDraining() bool {
	return c.draining.Load()
}

// Health runs every check and returns the aggregate status: the worst
// check status wins.
func (c *Checker) Health(ctx context.Context) Response {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()
	sort.Strings(names)

	resp := Response{
		Status:    StatusUp,
		Version:   c.version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
	if len(names) > 0 {
		resp.Checks = make(map[string]Check, len(names))
	}

	for _, name := range names {
		check := checks[name](ctx)
		resp.Checks[name] = check
		c.metrics.recordCheck(name, check.Status)
		if severity(check.Status) > severity(resp.Status) {
			resp.Status = check.Status
		}
	}

	if c.IsDraining() {
		resp.Status = StatusOutOfService
	}
	c.metrics.recordCheck("overall", resp.Status)
	return resp
}

// HTTPStatus maps an aggregate status to a response code. A degraded
// gateway still answers, so it stays 200.
func HTTPStatus(s Status) int {
	switch s {
	case StatusUp, StatusDegraded:
		return http.StatusOK
	default:
		return http.StatusServiceUnavailable
	}
}

// Handler returns the gin handler of the health endpoint.
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		resp := c.Health(ctx.Request.Context())
		ctx.JSON(HTTPStatus(resp.Status), resp)
	}
}

func severity(s Status) int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	case StatusOutOfService:
		return 2
	default:
		return 3
	}
}
