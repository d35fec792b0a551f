package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/strategyforge/gateway/internal/auth"
	"github.com/strategyforge/gateway/internal/config"
	"github.com/strategyforge/gateway/internal/gateway/server/http/middleware"
	"github.com/strategyforge/gateway/internal/observability"
)

// ChainConfig configures the inbound middleware chain.
type ChainConfig struct {
	Logger         observability.Logger
	Metrics        *observability.Metrics
	CORS           middleware.CORSConfig
	RateLimit      config.RateLimitConfig
	RequestTimeout time.Duration
	Authenticator  *auth.Authenticator

	// QuietPaths are served without access log lines or rate limiting.
	QuietPaths []string
}

// UseGatewayChain installs the gateway middleware in order: recovery,
// request id, access log, tracing, metrics, security headers, CORS, rate
// limit, request deadline, authentication.
func (s *Server) UseGatewayChain(cfg ChainConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = s.logger
	}

	chain := []gin.HandlerFunc{
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.LoggingWithConfig(middleware.LoggingConfig{
			Logger:    logger,
			SkipPaths: cfg.QuietPaths,
		}),
		middleware.Tracing(),
	}
	if cfg.Metrics != nil {
		chain = append(chain, middleware.Metrics(cfg.Metrics))
	}
	chain = append(chain,
		middleware.SecurityHeaders(),
		middleware.CORSWithConfig(cfg.CORS),
	)
	if cfg.RateLimit.Enabled {
		chain = append(chain, middleware.RateLimitWithConfig(middleware.RateLimitConfig{
			Limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst),
			Logger:    logger,
			SkipPaths: cfg.QuietPaths,
		}))
	}
	chain = append(chain, middleware.RequestTimeout(cfg.RequestTimeout))
	if cfg.Authenticator != nil {
		chain = append(chain, middleware.Authentication(cfg.Authenticator, logger))
	}

	s.Use(chain...)
}
