package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables read on top of the configuration file. The
// STRATEGY_FORGE_* and AUTH_* names are kept from the previous deployment.
const (
	EnvConfigPath          = "GATEWAY_CONFIG_PATH"
	EnvPort                = "GATEWAY_PORT"
	EnvLogLevel            = "GATEWAY_LOG_LEVEL"
	EnvLogFormat           = "GATEWAY_LOG_FORMAT"
	EnvBackendBaseURL      = "STRATEGY_FORGE_PYTHON_API_BASE_URL"
	EnvBackendConnTimeout  = "STRATEGY_FORGE_PYTHON_API_CONNECT_TIMEOUT"
	EnvBackendReadTimeout  = "STRATEGY_FORGE_PYTHON_API_READ_TIMEOUT"
	EnvAuthAPIKey          = "AUTH_API_KEY"
	EnvAuthIssuerURI       = "AUTH_KEYCLOAK_ISSUER_URI"
	EnvAuthMode            = "AUTH_MODE"
	EnvRedisURL            = "GATEWAY_REDIS_URL"
	EnvOTLPEndpoint        = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvRateLimitEnabled    = "GATEWAY_RATE_LIMIT_ENABLED"
	EnvCacheEnabled        = "GATEWAY_CACHE_ENABLED"
	EnvTracingSamplingRate = "GATEWAY_TRACING_SAMPLING_RATE"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Loader handles configuration loading from files and readers.
type Loader struct {
	lookup LookupFunc
}

// NewLoader creates a loader that resolves variables with lookup.
// A nil lookup uses the process environment.
func NewLoader(lookup LookupFunc) *Loader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Loader{lookup: lookup}
}

// Load reads the file at path (if any), applies environment overrides and
// validates the result. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	return NewLoader(nil).Load(path)
}

// Load reads the file at path (if any), applies environment overrides and
// validates the result.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
		}
		data, err := os.ReadFile(absPath) //nolint:gosec // operator supplied path
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := l.decode(data, cfg); err != nil {
			return nil, err
		}
	}

	return l.finish(cfg)
}

// LoadFromReader decodes YAML from r on top of the defaults, then applies
// environment overrides and validation.
func (l *Loader) LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := l.decode(data, cfg); err != nil {
		return nil, err
	}
	return l.finish(cfg)
}

func (l *Loader) finish(cfg *Config) (*Config, error) {
	if err := l.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) decode(data []byte, cfg *Config) error {
	content := l.substituteEnvVars(string(data))
	if strings.TrimSpace(content) == "" {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment variable values.
func (l *Loader) substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := l.lookup(submatches[1]); exists {
			return value
		}
		return defaultValue
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}

// ApplyEnv overrides cfg with the well-known environment variables.
func (l *Loader) ApplyEnv(cfg *Config) error {
	var errs ValidationErrors

	str := func(key string, dst *string) {
		if v, ok := l.lookup(key); ok {
			*dst = v
		}
	}
	dur := func(key, path string, dst *Duration) {
		v, ok := l.lookup(key)
		if !ok {
			return
		}
		d, err := ParseDuration(v)
		if err != nil {
			errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf("%s: %v", key, err)})
			return
		}
		*dst = Duration(d)
	}
	boolean := func(key, path string, dst *bool) {
		v, ok := l.lookup(key)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf("%s: %v", key, err)})
			return
		}
		*dst = b
	}

	if v, ok := l.lookup(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, ValidationError{Path: "server.port", Message: fmt.Sprintf("%s: %v", EnvPort, err)})
		} else {
			cfg.Server.Port = port
		}
	}

	str(EnvBackendBaseURL, &cfg.Backend.BaseURL)
	dur(EnvBackendConnTimeout, "backend.connectTimeout", &cfg.Backend.ConnectTimeout)
	dur(EnvBackendReadTimeout, "backend.readTimeout", &cfg.Backend.ReadTimeout)

	str(EnvAuthAPIKey, &cfg.Auth.APIKey)
	str(EnvAuthIssuerURI, &cfg.Auth.IssuerURI)
	str(EnvAuthMode, &cfg.Auth.Mode)

	str(EnvLogLevel, &cfg.Observability.LogLevel)
	str(EnvLogFormat, &cfg.Observability.LogFormat)

	if v, ok := l.lookup(EnvRedisURL); ok && v != "" {
		cfg.Cache.Redis.URL = v
		cfg.Cache.Type = CacheTypeRedis
	}
	boolean(EnvCacheEnabled, "cache.enabled", &cfg.Cache.Enabled)
	boolean(EnvRateLimitEnabled, "rateLimit.enabled", &cfg.RateLimit.Enabled)

	if v, ok := l.lookup(EnvOTLPEndpoint); ok && v != "" {
		cfg.Observability.Tracing.OTLPEndpoint = v
		cfg.Observability.Tracing.Enabled = true
	}
	if v, ok := l.lookup(EnvTracingSamplingRate); ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, ValidationError{
				Path:    "observability.tracing.samplingRate",
				Message: fmt.Sprintf("%s: %v", EnvTracingSamplingRate, err),
			})
		} else {
			cfg.Observability.Tracing.SamplingRate = rate
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// normalize trims values whose surrounding whitespace carries no meaning.
// A whitespace-only API key disables API key authentication.
func (c *Config) normalize() {
	c.Auth.APIKey = strings.TrimSpace(c.Auth.APIKey)
	c.Auth.IssuerURI = strings.TrimSpace(c.Auth.IssuerURI)
	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	c.Auth.APIKeyHeader = strings.TrimSpace(c.Auth.APIKeyHeader)
	if c.Auth.APIKeyHeader == "" {
		c.Auth.APIKeyHeader = "X-API-Key"
	}
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
}
