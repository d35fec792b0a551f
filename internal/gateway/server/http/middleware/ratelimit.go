package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/strategyforge/gateway/internal/observability"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Limiter is the shared token bucket.
	Limiter *rate.Limiter

	// Logger for logging rate limit events.
	Logger observability.Logger

	// SkipPaths is a list of paths to skip rate limiting.
	SkipPaths []string
}

// RateLimit returns a middleware applying a global token bucket of rps
// requests per second with the given burst.
func RateLimit(rps float64, burst int, logger observability.Logger) gin.HandlerFunc {
	return RateLimitWithConfig(RateLimitConfig{
		Limiter: rate.NewLimiter(rate.Limit(rps), burst),
		Logger:  logger,
	})
}

// RateLimitWithConfig returns a rate limit middleware with custom configuration.
func RateLimitWithConfig(config RateLimitConfig) gin.HandlerFunc {
	if config.Limiter == nil {
		config.Limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if config.Logger == nil {
		config.Logger = observability.NopLogger()
	}

	skipPaths := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		reservation := config.Limiter.Reserve()
		if !reservation.OK() {
			rejectRateLimited(c, config, time.Second)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			rejectRateLimited(c, config, delay)
			return
		}

		c.Next()
	}
}

func rejectRateLimited(c *gin.Context, config RateLimitConfig, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))

	config.Logger.Debug("rate limit exceeded",
		observability.String("path", c.Request.URL.Path),
		observability.String("clientIP", c.ClientIP()),
	)

	abortWithEnvelope(c, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded")
}
