package health

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/strategyforge/gateway/internal/cache"
	"github.com/strategyforge/gateway/internal/circuitbreaker"
)

// cacheProbeKey is read by the cache check; it is never written.
const cacheProbeKey = "health:probe"

// defaultCheckTimeout bounds a single dependency probe.
const defaultCheckTimeout = 2 * time.Second

// BreakerSource exposes breaker state to the breaker check.
type BreakerSource interface {
	Snapshots() []circuitbreaker.Snapshot
}

// BreakerCheck reports DEGRADED while any breaker is open: the gateway
// answers, but the affected routes serve fallbacks.
func BreakerCheck(source BreakerSource) CheckFunc {
	return func(context.Context) Check {
		var open, probing []string
		for _, s := range source.Snapshots() {
			switch s.State {
			case circuitbreaker.StateOpen.String():
				open = append(open, s.Name)
			case circuitbreaker.StateHalfOpen.String():
				probing = append(probing, s.Name)
			}
		}

		switch {
		case len(open) > 0:
			return Check{Status: StatusDegraded, Message: "open: " + strings.Join(open, ", ")}
		case len(probing) > 0:
			return Check{Status: StatusUp, Message: "half-open: " + strings.Join(probing, ", ")}
		default:
			return Check{Status: StatusUp}
		}
	}
}

// CacheCheck probes the response cache with a read. A miss is healthy; a
// failing cache degrades the gateway without stopping it, since reads fall
// through to the backend.
func CacheCheck(c cache.Cache) CheckFunc {
	return func(ctx context.Context) Check {
		ctx, cancel := context.WithTimeout(ctx, defaultCheckTimeout)
		defer cancel()

		_, err := c.Get(ctx, cacheProbeKey)
		if err == nil || errors.Is(err, cache.ErrCacheMiss) || errors.Is(err, cache.ErrCacheDisabled) {
			return Check{Status: StatusUp}
		}
		return Check{Status: StatusDegraded, Message: err.Error()}
	}
}
