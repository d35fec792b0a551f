package proxy

import (
	"net/http"

	"github.com/strategyforge/gateway/internal/circuitbreaker"
	"github.com/strategyforge/gateway/internal/config"
	"github.com/strategyforge/gateway/internal/retry"
)

// Operation names of the strategy service routes.
const (
	OperationGenerateStrategy = "generate-strategy"
	OperationRunBacktest      = "run-backtest"
	OperationTopStrategies    = "top-strategies"
	OperationBackendHealth    = "backend-health"
)

// emptyTopStrategies is the degraded ranking: an empty list is a valid
// answer for a read-only aggregate.
var emptyTopStrategies = []byte(`{"top_strategies":[]}`)

// Fallbacks returns the fallback of each operation.
func Fallbacks() map[string]FallbackFunc {
	return map[string]FallbackFunc{
		OperationGenerateStrategy: UnavailableFallback("Strategy generation temporarily unavailable"),
		OperationRunBacktest:      UnavailableFallback("Backtest service temporarily unavailable"),
		OperationTopStrategies:    StaticFallback(http.StatusOK, emptyTopStrategies),
		OperationBackendHealth:    UnavailableFallback("Strategy service unavailable"),
	}
}

// PoliciesFromConfig builds the policy of every operation from the
// resilience configuration.
func PoliciesFromConfig(cfg config.ResilienceConfig) []RoutePolicy {
	fallbacks := Fallbacks()
	operations := []string{
		OperationGenerateStrategy,
		OperationRunBacktest,
		OperationTopStrategies,
		OperationBackendHealth,
	}

	policies := make([]RoutePolicy, 0, len(operations))
	for _, op := range operations {
		p := cfg.Policy(op)
		policies = append(policies, RoutePolicy{
			Operation: op,
			Retry: retry.NewPolicy(retry.Config{
				MaxRetries:        p.MaxRetries,
				InitialBackoff:    p.InitialBackoff.Duration(),
				MaxBackoff:        p.MaxBackoff.Duration(),
				Multiplier:        p.Multiplier,
				Jitter:            p.Jitter,
				RetryableStatuses: p.RetryableStatuses,
			}),
			Breaker: circuitbreaker.Config{
				FailureThreshold: p.FailureThreshold,
				OpenDuration:     p.OpenDuration.Duration(),
			},
			Fallback: fallbacks[op],
		})
	}
	return policies
}
