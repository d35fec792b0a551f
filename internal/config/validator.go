package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidConfig is matched by every configuration error, so callers can
// tell startup misconfiguration apart from runtime failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// NewValidationError builds a single configuration error.
func NewValidationError(path, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)}
}

type validator struct {
	errors ValidationErrors
}

func (v *validator) addError(path, format string, args ...interface{}) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Validate checks cfg and returns ValidationErrors describing every problem found.
func Validate(cfg *Config) error {
	v := &validator{}

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&cfg.Server)
	v.validateBackend(&cfg.Backend)
	v.validateAuth(&cfg.Auth)
	v.validateRateLimit(&cfg.RateLimit)
	v.validateResilience(&cfg.Resilience)
	v.validateCache(&cfg.Cache)
	v.validateTracing(&cfg.Observability.Tracing)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *validator) validateServer(s *ServerConfig) {
	if s.Port < 1 || s.Port > 65535 {
		v.addError("server.port", "must be between 1 and 65535, got %d", s.Port)
	}
	if s.RequestTimeout <= 0 {
		v.addError("server.requestTimeout", "must be positive")
	}
}

func (v *validator) validateBackend(b *BackendConfig) {
	if err := validateHTTPURL(b.BaseURL); err != nil {
		v.addError("backend.baseURL", "%v", err)
	}
	if b.ConnectTimeout <= 0 {
		v.addError("backend.connectTimeout", "must be positive")
	}
	if b.ReadTimeout <= 0 {
		v.addError("backend.readTimeout", "must be positive")
	}
}

func (v *validator) validateAuth(a *AuthConfig) {
	if a.IssuerURI != "" {
		if err := validateHTTPURL(a.IssuerURI); err != nil {
			v.addError("auth.issuerURI", "%v", err)
		}
	}
	if _, err := a.EffectiveMode(); err != nil {
		v.addError("auth.mode", "%v", err)
	}
	for _, p := range a.PublicPaths {
		if !strings.HasPrefix(p, "/") {
			v.addError("auth.publicPaths", "path %q must start with /", p)
		}
	}
	if a.ClockSkew < 0 {
		v.addError("auth.clockSkew", "must not be negative")
	}
}

func (v *validator) validateRateLimit(r *RateLimitConfig) {
	if !r.Enabled {
		return
	}
	if r.RequestsPerSecond <= 0 {
		v.addError("rateLimit.requestsPerSecond", "must be positive")
	}
	if r.Burst < 1 {
		v.addError("rateLimit.burst", "must be at least 1")
	}
}

func (v *validator) validateResilience(r *ResilienceConfig) {
	v.validatePolicy("resilience.defaults", r.Defaults)
	for name := range r.Routes {
		v.validatePolicy("resilience.routes."+name, r.Policy(name))
	}
}

func (v *validator) validatePolicy(path string, p PolicyConfig) {
	if p.MaxRetries < 0 {
		v.addError(path+".maxRetries", "must not be negative")
	}
	if p.InitialBackoff < 0 {
		v.addError(path+".initialBackoff", "must not be negative")
	}
	if p.MaxBackoff < p.InitialBackoff {
		v.addError(path+".maxBackoff", "must not be less than initialBackoff")
	}
	if p.Multiplier < 1 {
		v.addError(path+".multiplier", "must be at least 1")
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		v.addError(path+".jitter", "must be between 0 and 1")
	}
	for _, status := range p.RetryableStatuses {
		if status < 500 || status > 599 {
			v.addError(path+".retryableStatuses", "status %d is not a 5xx status", status)
		}
	}
	if p.FailureThreshold < 1 {
		v.addError(path+".failureThreshold", "must be at least 1")
	}
	if p.OpenDuration <= 0 {
		v.addError(path+".openDuration", "must be positive")
	}
}

func (v *validator) validateCache(c *CacheConfig) {
	if !c.Enabled {
		return
	}
	switch c.Type {
	case CacheTypeMemory:
	case CacheTypeRedis:
		if c.Redis.URL == "" {
			v.addError("cache.redis.url", "is required for the redis cache")
		}
	default:
		v.addError("cache.type", "unknown cache type %q", c.Type)
	}
	if c.TTL <= 0 {
		v.addError("cache.ttl", "must be positive")
	}
}

func (v *validator) validateTracing(t *TracingConfig) {
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		v.addError("observability.tracing.samplingRate", "must be between 0 and 1")
	}
}

// EffectiveMode derives the auth mode from the configured credentials and
// checks it against an explicitly configured mode.
func (a *AuthConfig) EffectiveMode() (string, error) {
	hasKey := strings.TrimSpace(a.APIKey) != ""
	hasIssuer := strings.TrimSpace(a.IssuerURI) != ""

	var derived string
	switch {
	case hasKey && hasIssuer:
		derived = AuthModeAPIKeyOrJWT
	case hasKey:
		derived = AuthModeAPIKey
	case hasIssuer:
		derived = AuthModeJWT
	default:
		derived = AuthModeOpen
	}

	switch a.Mode {
	case "", derived:
		return derived, nil
	case AuthModeOpen, AuthModeAPIKey, AuthModeJWT, AuthModeAPIKeyOrJWT:
		return "", fmt.Errorf("mode %q contradicts configured credentials (api key set: %t, issuer set: %t)",
			a.Mode, hasKey, hasIssuer)
	default:
		return "", fmt.Errorf("unknown mode %q", a.Mode)
	}
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}
