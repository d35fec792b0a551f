// Package config provides configuration types, loading and validation
// for the gateway. Configuration is resolved once at startup and treated
// as immutable afterwards.
package config

import (
	"time"
)

// Cache backend types.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Auth modes that may be set explicitly in auth.mode. An empty mode means
// the mode is derived from which credentials are configured.
const (
	AuthModeOpen        = "open"
	AuthModeAPIKey      = "apikey"
	AuthModeJWT         = "jwt"
	AuthModeAPIKeyOrJWT = "apikey_or_jwt"
)

// Config is the root gateway configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Backend       BackendConfig       `yaml:"backend" json:"backend"`
	Auth          AuthConfig          `yaml:"auth" json:"auth"`
	CORS          CORSConfig          `yaml:"cors" json:"cors"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit" json:"rateLimit"`
	Resilience    ResilienceConfig    `yaml:"resilience" json:"resilience"`
	Cache         CacheConfig         `yaml:"cache" json:"cache"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	Port            int      `yaml:"port" json:"port"`
	RequestTimeout  Duration `yaml:"requestTimeout" json:"requestTimeout"`
	ReadTimeout     Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout" json:"writeTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// BackendConfig configures the strategy service client.
type BackendConfig struct {
	BaseURL        string   `yaml:"baseURL" json:"baseURL"`
	ConnectTimeout Duration `yaml:"connectTimeout" json:"connectTimeout"`
	ReadTimeout    Duration `yaml:"readTimeout" json:"readTimeout"`
}

// AuthConfig configures the authentication gate.
type AuthConfig struct {
	// Mode optionally pins the auth mode; it must agree with the
	// configured credentials.
	Mode string `yaml:"mode" json:"mode"`

	// APIKey is the shared secret, or a bcrypt hash of it. Blank means
	// API key authentication is disabled.
	APIKey       string `yaml:"apiKey" json:"-"`
	APIKeyHeader string `yaml:"apiKeyHeader" json:"apiKeyHeader"`

	// IssuerURI enables bearer JWT authentication when set.
	IssuerURI   string   `yaml:"issuerURI" json:"issuerURI"`
	ClockSkew   Duration `yaml:"clockSkew" json:"clockSkew"`
	JWKSRefresh Duration `yaml:"jwksRefresh" json:"jwksRefresh"`

	PublicPaths []string `yaml:"publicPaths" json:"publicPaths"`
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	AllowOrigins     []string `yaml:"allowOrigins" json:"allowOrigins"`
	AllowMethods     []string `yaml:"allowMethods" json:"allowMethods"`
	AllowHeaders     []string `yaml:"allowHeaders" json:"allowHeaders"`
	AllowCredentials bool     `yaml:"allowCredentials" json:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge" json:"maxAge"`
}

// RateLimitConfig configures the global inbound rate limit.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// ResilienceConfig holds the default outbound policy and per-operation overrides.
type ResilienceConfig struct {
	Defaults PolicyConfig                   `yaml:"defaults" json:"defaults"`
	Routes   map[string]PolicyOverrideConfig `yaml:"routes" json:"routes"`
}

// PolicyConfig is a fully specified outbound resilience policy.
type PolicyConfig struct {
	MaxRetries        int      `yaml:"maxRetries" json:"maxRetries"`
	InitialBackoff    Duration `yaml:"initialBackoff" json:"initialBackoff"`
	MaxBackoff        Duration `yaml:"maxBackoff" json:"maxBackoff"`
	Multiplier        float64  `yaml:"multiplier" json:"multiplier"`
	Jitter            float64  `yaml:"jitter" json:"jitter"`
	RetryableStatuses []int    `yaml:"retryableStatuses" json:"retryableStatuses"`
	FailureThreshold  int      `yaml:"failureThreshold" json:"failureThreshold"`
	OpenDuration      Duration `yaml:"openDuration" json:"openDuration"`
}

// PolicyOverrideConfig overrides selected fields of the default policy for
// one operation. Nil fields inherit the default.
type PolicyOverrideConfig struct {
	MaxRetries        *int      `yaml:"maxRetries" json:"maxRetries,omitempty"`
	InitialBackoff    *Duration `yaml:"initialBackoff" json:"initialBackoff,omitempty"`
	MaxBackoff        *Duration `yaml:"maxBackoff" json:"maxBackoff,omitempty"`
	Multiplier        *float64  `yaml:"multiplier" json:"multiplier,omitempty"`
	Jitter            *float64  `yaml:"jitter" json:"jitter,omitempty"`
	RetryableStatuses []int     `yaml:"retryableStatuses" json:"retryableStatuses,omitempty"`
	FailureThreshold  *int      `yaml:"failureThreshold" json:"failureThreshold,omitempty"`
	OpenDuration      *Duration `yaml:"openDuration" json:"openDuration,omitempty"`
}

// CacheConfig configures the response cache for read-only operations.
type CacheConfig struct {
	Enabled    bool             `yaml:"enabled" json:"enabled"`
	Type       string           `yaml:"type" json:"type"`
	TTL        Duration         `yaml:"ttl" json:"ttl"`
	MaxEntries int              `yaml:"maxEntries" json:"maxEntries"`
	Redis      RedisCacheConfig `yaml:"redis" json:"redis"`
}

// RedisCacheConfig contains Redis-specific cache configuration.
type RedisCacheConfig struct {
	URL       string `yaml:"url" json:"-"`
	KeyPrefix string `yaml:"keyPrefix" json:"keyPrefix"`
	PoolSize  int    `yaml:"poolSize" json:"poolSize"`
}

// ObservabilityConfig configures logging and tracing.
type ObservabilityConfig struct {
	LogLevel  string        `yaml:"logLevel" json:"logLevel"`
	LogFormat string        `yaml:"logFormat" json:"logFormat"`
	Tracing   TracingConfig `yaml:"tracing" json:"tracing"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
	ServiceName  string  `yaml:"serviceName" json:"serviceName"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			RequestTimeout:  Duration(120 * time.Second),
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(130 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
		},
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8000",
			ConnectTimeout: Duration(5 * time.Second),
			ReadTimeout:    Duration(60 * time.Second),
		},
		Auth: AuthConfig{
			APIKeyHeader: "X-API-Key",
			ClockSkew:    Duration(30 * time.Second),
			JWKSRefresh:  Duration(15 * time.Minute),
			PublicPaths:  []string{"/actuator", "/error"},
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-API-Key", "X-Request-ID"},
			MaxAge:       3600,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Resilience: ResilienceConfig{
			Defaults: PolicyConfig{
				MaxRetries:        2,
				InitialBackoff:    Duration(500 * time.Millisecond),
				MaxBackoff:        Duration(5 * time.Second),
				Multiplier:        2,
				Jitter:            0.2,
				RetryableStatuses: []int{500, 502, 503, 504},
				FailureThreshold:  5,
				OpenDuration:      Duration(30 * time.Second),
			},
			Routes: map[string]PolicyOverrideConfig{
				// Ranking reads are cheap to re-request and have a safe fallback.
				"top-strategies": {MaxRetries: intPtr(0)},
			},
		},
		Cache: CacheConfig{
			Type:       CacheTypeMemory,
			TTL:        Duration(30 * time.Second),
			MaxEntries: 1000,
			Redis: RedisCacheConfig{
				KeyPrefix: "strategyforge:",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			Tracing: TracingConfig{
				SamplingRate: 1.0,
				ServiceName:  "strategyforge-gateway",
			},
		},
	}
}

// Policy returns the effective policy for an operation: the defaults with
// the operation's overrides applied.
func (r ResilienceConfig) Policy(operation string) PolicyConfig {
	p := r.Defaults
	p.RetryableStatuses = append([]int(nil), r.Defaults.RetryableStatuses...)

	o, ok := r.Routes[operation]
	if !ok {
		return p
	}
	if o.MaxRetries != nil {
		p.MaxRetries = *o.MaxRetries
	}
	if o.InitialBackoff != nil {
		p.InitialBackoff = *o.InitialBackoff
	}
	if o.MaxBackoff != nil {
		p.MaxBackoff = *o.MaxBackoff
	}
	if o.Multiplier != nil {
		p.Multiplier = *o.Multiplier
	}
	if o.Jitter != nil {
		p.Jitter = *o.Jitter
	}
	if o.RetryableStatuses != nil {
		p.RetryableStatuses = append([]int(nil), o.RetryableStatuses...)
	}
	if o.FailureThreshold != nil {
		p.FailureThreshold = *o.FailureThreshold
	}
	if o.OpenDuration != nil {
		p.OpenDuration = *o.OpenDuration
	}
	return p
}

func intPtr(v int) *int {
	return &v
}
