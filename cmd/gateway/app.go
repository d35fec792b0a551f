package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/strategyforge/gateway/internal/auth"
	"github.com/strategyforge/gateway/internal/auth/apikey"
	"github.com/strategyforge/gateway/internal/auth/jwt"
	"github.com/strategyforge/gateway/internal/backend"
	"github.com/strategyforge/gateway/internal/cache"
	"github.com/strategyforge/gateway/internal/circuitbreaker"
	"github.com/strategyforge/gateway/internal/config"
	httpserver "github.com/strategyforge/gateway/internal/gateway/server/http"
	"github.com/strategyforge/gateway/internal/gateway/server/http/middleware"
	"github.com/strategyforge/gateway/internal/health"
	"github.com/strategyforge/gateway/internal/observability"
	"github.com/strategyforge/gateway/internal/proxy"
)

// quietPaths are polled by probes and scrapers; they skip access logs and
// the rate limit.
var quietPaths = []string{
	httpserver.PathActuatorHealth,
	httpserver.PathActuatorPrometheus,
}

// appOptions carries process-wide dependencies that tests replace.
type appOptions struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// application holds all application components.
type application struct {
	server        *httpserver.Server
	backendClient *backend.Client
	breakers      *circuitbreaker.Registry
	health        *health.Checker
	jwtValidator  *jwt.KeySetValidator
	responseCache cache.Cache
	tracer        *observability.Tracer
	config        *config.Config
}

// newApplication wires every component. Any error is a startup
// configuration error and must stop the process.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger observability.Logger,
	opts appOptions,
) (*application, error) {
	if opts.registerer == nil {
		opts.registerer = prometheus.DefaultRegisterer
	}
	if opts.gatherer == nil {
		opts.gatherer = prometheus.DefaultGatherer
	}

	app := &application{config: cfg}

	tracer, err := observability.NewTracer(ctx, observability.TracerConfig{
		ServiceName:  cfg.Observability.Tracing.ServiceName,
		OTLPEndpoint: cfg.Observability.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
		Enabled:      cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.tracer = tracer

	gate, jwtValidator, err := buildAuthenticator(ctx, cfg.Auth, logger)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, err
	}
	app.jwtValidator = jwtValidator

	app.backendClient = backend.NewClient(cfg.Backend, backend.WithLogger(logger))
	app.breakers = circuitbreaker.NewRegistry(logger)
	forwarder, err := proxy.NewForwarder(app.backendClient, app.breakers,
		proxy.PoliciesFromConfig(cfg.Resilience),
		proxy.WithForwarderLogger(logger),
	)
	if err != nil {
		app.close(ctx, logger)
		return nil, fmt.Errorf("failed to build forwarder: %w", err)
	}

	app.health = health.NewChecker(version)
	app.health.RegisterCheck("circuitBreakers", health.BreakerCheck(app.breakers))

	routerOpts := []httpserver.RouterOption{
		httpserver.WithRouterLogger(logger),
		httpserver.WithBreakers(app.breakers),
		httpserver.WithHealthChecker(app.health),
		httpserver.WithMetricsHandler(promhttp.HandlerFor(opts.gatherer, promhttp.HandlerOpts{})),
	}
	if cfg.Cache.Enabled {
		responseCache, err := cache.New(&cfg.Cache, logger)
		if err != nil {
			app.close(ctx, logger)
			return nil, fmt.Errorf("failed to initialize response cache: %w", err)
		}
		app.responseCache = responseCache
		app.health.RegisterCheck("responseCache", health.CacheCheck(responseCache))
		routerOpts = append(routerOpts, httpserver.WithResponseCache(responseCache, cfg.Cache.TTL.Duration()))
	}

	app.server = httpserver.NewServer(httpserver.ServerConfigFrom(cfg.Server), logger)
	app.server.UseGatewayChain(httpserver.ChainConfig{
		Logger:         logger,
		Metrics:        observability.NewMetrics("gateway", opts.registerer),
		CORS:           middleware.CORSConfigFrom(cfg.CORS),
		RateLimit:      cfg.RateLimit,
		RequestTimeout: cfg.Server.RequestTimeout.Duration(),
		Authenticator:  gate,
		QuietPaths:     quietPaths,
	})
	httpserver.NewRouter(forwarder, routerOpts...).Register(app.server.Engine())

	logger.Info("gateway initialized",
		observability.String("auth_mode", gate.Mode().String()),
		observability.Strings("operations", forwarder.Operations()),
		observability.Bool("cache_enabled", cfg.Cache.Enabled),
		observability.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		observability.Bool("tracing_enabled", tracer.Enabled()),
	)
	return app, nil
}

// buildAuthenticator selects the verifiers of the configured mode. JWT
// discovery happens here, so an unreachable issuer fails startup.
func buildAuthenticator(
	ctx context.Context,
	cfg config.AuthConfig,
	logger observability.Logger,
) (*auth.Authenticator, *jwt.KeySetValidator, error) {
	modeName, err := cfg.EffectiveMode()
	if err != nil {
		return nil, nil, err
	}
	mode, err := auth.ParseMode(modeName)
	if err != nil {
		return nil, nil, err
	}

	var verifiers []auth.Verifier
	if mode == auth.ModeAPIKey || mode == auth.ModeAPIKeyOrJWT {
		validator, err := apikey.NewValidator(cfg.APIKey, apikey.WithValidatorLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build API key validator: %w", err)
		}
		verifiers = append(verifiers,
			auth.NewAPIKeyVerifier(apikey.NewHeaderExtractor(cfg.APIKeyHeader), validator))
	}

	var jwtValidator *jwt.KeySetValidator
	if mode == auth.ModeJWT || mode == auth.ModeAPIKeyOrJWT {
		jwtValidator, err = jwt.NewValidator(ctx, jwt.Config{
			IssuerURI:       cfg.IssuerURI,
			ClockSkew:       cfg.ClockSkew.Duration(),
			RefreshInterval: cfg.JWKSRefresh.Duration(),
		}, jwt.WithValidatorLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize JWT validation: %w", err)
		}
		verifiers = append(verifiers, auth.NewJWTVerifier(nil, jwtValidator))
	}

	gate, err := auth.NewAuthenticator(mode, verifiers,
		auth.WithAuthenticatorLogger(logger),
		auth.WithPublicPaths(cfg.PublicPaths...),
	)
	if err != nil {
		if jwtValidator != nil {
			jwtValidator.Close()
		}
		return nil, nil, err
	}
	return gate, jwtValidator, nil
}

// close releases everything except the HTTP server.
func (a *application) close(ctx context.Context, logger observability.Logger) {
	if a.responseCache != nil {
		if err := a.responseCache.Close(); err != nil {
			logger.Error("failed to close response cache", observability.Error(err))
		}
	}
	if a.jwtValidator != nil {
		a.jwtValidator.Close()
	}
	if a.backendClient != nil {
		a.backendClient.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown tracer", observability.Error(err))
		}
	}
}
