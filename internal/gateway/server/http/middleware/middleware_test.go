package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/strategyforge/gateway/internal/auth"
	"github.com/strategyforge/gateway/internal/auth/apikey"
	"github.com/strategyforge/gateway/internal/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newObservedLogger(level zapcore.Level) (observability.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return observability.NewZapLogger(zap.New(core)), logs
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	logger, logs := newObservedLogger(zapcore.ErrorLevel)
	engine := gin.New()
	engine.Use(RequestID(), Recovery(logger))
	engine.GET("/panic", func(*gin.Context) { panic("boom") })

	rec := serve(engine, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error","detail":"An unexpected error occurred"}`, rec.Body.String())
	require.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	entry := logs.FilterMessage("panic recovered").All()[0]
	assert.Equal(t, "/panic", entry.ContextMap()["path"])
	assert.NotEmpty(t, entry.ContextMap()["requestID"])
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) {
		assert.Equal(t, GetRequestID(c), observability.RequestIDFromContext(c.Request.Context()))
		c.Status(http.StatusOK)
	})

	t.Run("generated", func(t *testing.T) {
		rec := serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := serve(engine, req)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})
}

func TestLogging_LevelByStatus(t *testing.T) {
	t.Parallel()

	logger, logs := newObservedLogger(zapcore.DebugLevel)
	engine := gin.New()
	engine.Use(RequestID(), Logging(logger))
	engine.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	engine.GET("/fail", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	serve(engine, httptest.NewRequest(http.MethodGet, "/ok", nil))
	serve(engine, httptest.NewRequest(http.MethodGet, "/bad", nil))
	serve(engine, httptest.NewRequest(http.MethodGet, "/fail", nil))

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, int64(http.StatusBadGateway), entries[2].ContextMap()["status"])
}

func TestLogging_SkipPaths(t *testing.T) {
	t.Parallel()

	logger, logs := newObservedLogger(zapcore.DebugLevel)
	engine := gin.New()
	engine.Use(LoggingWithConfig(LoggingConfig{Logger: logger, SkipPaths: []string{"/actuator/health"}}))
	engine.GET("/actuator/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(engine, httptest.NewRequest(http.MethodGet, "/actuator/health", nil))
	assert.Equal(t, 0, logs.Len())
}

func TestCORS(t *testing.T) {
	t.Parallel()

	engine := gin.New()
	engine.Use(CORS())
	engine.POST("/api", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api", nil)
		req.Header.Set("Origin", "https://app.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := serve(engine, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
	})

	t.Run("simple request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api", nil)
		req.Header.Set("Origin", "https://app.example")
		rec := serve(engine, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no origin", func(t *testing.T) {
		rec := serve(engine, httptest.NewRequest(http.MethodPost, "/api", nil))
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	t.Parallel()

	engine := gin.New()
	engine.Use(CORSWithConfig(CORSConfig{
		AllowOrigins:     []string{"https://app.example"},
		AllowCredentials: true,
	}))
	engine.GET("/api", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := serve(engine, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = serve(engine, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	engine := gin.New()
	engine.Use(RateLimitWithConfig(RateLimitConfig{
		Limiter:   rate.NewLimiter(rate.Every(time.Hour), 2),
		SkipPaths: []string{"/actuator/health"},
	}))
	engine.GET("/api", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/actuator/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(engine, httptest.NewRequest(http.MethodGet, "/api", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(engine, httptest.NewRequest(http.MethodGet, "/api", nil)).Code)

	rec := serve(engine, httptest.NewRequest(http.MethodGet, "/api", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Too Many Requests","detail":"Rate limit exceeded"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(engine, httptest.NewRequest(http.MethodGet, "/actuator/health", nil)).Code)
}

func TestRequestTimeout(t *testing.T) {
	t.Parallel()

	engine := gin.New()
	engine.Use(RequestTimeout(20 * time.Millisecond))
	engine.GET("/slow", func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
			assert.ErrorIs(t, c.Request.Context().Err(), context.DeadlineExceeded)
			c.Status(http.StatusServiceUnavailable)
		case <-time.After(time.Second):
			c.Status(http.StatusOK)
		}
	})

	rec := serve(engine, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	engine := gin.New()
	engine.Use(SecurityHeaders())
	engine.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })

	rec := serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("test", reg)

	engine := gin.New()
	engine.Use(Metrics(m))
	engine.GET("/api/v1/strategies/top", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(engine, httptest.NewRequest(http.MethodGet, "/api/v1/strategies/top?limit=5", nil))
	serve(engine, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "test_http_requests_total"))
}

func newTestGate(t *testing.T) *auth.Authenticator {
	t.Helper()

	keys, err := apikey.NewValidator("s3cr3t", apikey.WithValidatorMetrics(apikey.NewMetrics("test", nil)))
	require.NoError(t, err)

	gate, err := auth.NewAuthenticator(auth.ModeAPIKey,
		[]auth.Verifier{auth.NewAPIKeyVerifier(nil, keys)},
		auth.WithPublicPaths("/actuator"),
		auth.WithAuthenticatorMetrics(auth.NewMetrics("test", nil)),
	)
	require.NoError(t, err)
	return gate
}

func TestAuthentication(t *testing.T) {
	t.Parallel()

	calls := 0
	engine := gin.New()
	engine.Use(Authentication(newTestGate(t), nil))
	engine.GET("/api/v1/health", func(c *gin.Context) {
		calls++
		identity, ok := GetIdentity(c)
		require.True(t, ok)
		c.String(http.StatusOK, identity.Principal)
	})
	engine.GET("/actuator/health", func(c *gin.Context) {
		_, ok := GetIdentity(c)
		assert.False(t, ok)
		c.Status(http.StatusOK)
	})

	t.Run("rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("X-API-Key", "wrong")
		rec := serve(engine, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, auth.RejectionBody, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, 0, calls)
	})

	t.Run("admitted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("X-API-Key", "s3cr3t")
		rec := serve(engine, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, auth.PrincipalAPIKey, rec.Body.String())
		assert.Equal(t, 1, calls)
	})

	t.Run("public", func(t *testing.T) {
		rec := serve(engine, httptest.NewRequest(http.MethodGet, "/actuator/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
