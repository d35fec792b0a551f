package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/strategyforge/gateway/internal/observability"
)

// Defaults for validator configuration.
const (
	DefaultClockSkew       = 30 * time.Second
	DefaultRefreshInterval = 15 * time.Minute
	DefaultFetchTimeout    = 10 * time.Second
)

// Config configures a Validator.
type Config struct {
	IssuerURI       string
	ClockSkew       time.Duration
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
}

// Claims holds the verified claims the gateway uses.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	Scopes    []string
	ExpiresAt time.Time
}

// Validator validates bearer tokens.
type Validator interface {
	// Validate verifies token and returns its claims.
	Validate(ctx context.Context, token string) (*Claims, error)
}

// KeySetValidator implements Validator on a jwx cached key set.
type KeySetValidator struct {
	issuer     string
	clockSkew  time.Duration
	jwksURI    string
	keySet     jwk.Set
	cancel     context.CancelFunc
	httpClient *http.Client
	logger     observability.Logger
	metrics    *Metrics
}

// ValidatorOption is a functional option for the validator.
type ValidatorOption func(*KeySetValidator)

// WithValidatorLogger sets the logger for the validator.
func WithValidatorLogger(logger observability.Logger) ValidatorOption {
	return func(v *KeySetValidator) {
		v.logger = logger
	}
}

// WithValidatorMetrics sets the metrics for the validator.
func WithValidatorMetrics(metrics *Metrics) ValidatorOption {
	return func(v *KeySetValidator) {
		v.metrics = metrics
	}
}

// WithHTTPClient sets the client used for discovery and key fetches.
func WithHTTPClient(client *http.Client) ValidatorOption {
	return func(v *KeySetValidator) {
		v.httpClient = client
	}
}

// NewValidator discovers the issuer's key set and returns a validator
// backed by a refreshing cache. Background refresh stops when ctx is done
// or Close is called.
func NewValidator(ctx context.Context, cfg Config, opts ...ValidatorOption) (*KeySetValidator, error) {
	if strings.TrimSpace(cfg.IssuerURI) == "" {
		return nil, fmt.Errorf("%w: issuer URI is required", ErrDiscoveryFailed)
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = DefaultClockSkew
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}

	v := &KeySetValidator{
		issuer:     strings.TrimRight(cfg.IssuerURI, "/"),
		clockSkew:  cfg.ClockSkew,
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.metrics == nil {
		v.metrics = GetSharedMetrics()
	}

	fetchCtx, cancelFetch := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancelFetch()

	doc, err := Discover(fetchCtx, v.httpClient, cfg.IssuerURI)
	if err != nil {
		v.metrics.RecordDiscovery("error")
		return nil, err
	}
	v.metrics.RecordDiscovery("success")
	v.issuer = doc.Issuer
	v.jwksURI = doc.JWKSUri

	cacheCtx, cancel := context.WithCancel(ctx)
	cache := jwk.NewCache(cacheCtx)
	if err := cache.Register(doc.JWKSUri,
		jwk.WithMinRefreshInterval(cfg.RefreshInterval),
		jwk.WithHTTPClient(v.httpClient),
	); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrJWKSUnavailable, err)
	}

	// Fetch once now so a bad key endpoint fails startup.
	start := time.Now()
	if _, err := cache.Refresh(fetchCtx, doc.JWKSUri); err != nil {
		cancel()
		v.metrics.RecordJWKSRefresh("error", time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrJWKSUnavailable, err)
	}
	v.metrics.RecordJWKSRefresh("success", time.Since(start))

	v.keySet = jwk.NewCachedSet(cache, doc.JWKSUri)
	v.cancel = cancel

	v.logger.Info("JWT validation enabled",
		observability.String("issuer", v.issuer),
		observability.String("jwks_uri", v.jwksURI),
		observability.Duration("refresh_interval", cfg.RefreshInterval),
	)
	return v, nil
}

// Issuer returns the expected token issuer.
func (v *KeySetValidator) Issuer() string {
	return v.issuer
}

// JWKSURI returns the discovered key set URL.
func (v *KeySetValidator) JWKSURI() string {
	return v.jwksURI
}

// Close stops background key refresh.
func (v *KeySetValidator) Close() {
	if v.cancel != nil {
		v.cancel()
	}
}

// Validate implements Validator.
func (v *KeySetValidator) Validate(_ context.Context, token string) (*Claims, error) {
	start := time.Now()

	tok, err := jwxjwt.ParseString(token,
		jwxjwt.WithKeySet(v.keySet, jws.WithInferAlgorithmFromKey(true)),
		jwxjwt.WithValidate(true),
		jwxjwt.WithIssuer(v.issuer),
		jwxjwt.WithAcceptableSkew(v.clockSkew),
	)
	if err != nil {
		verr := classify(err)
		v.metrics.RecordValidation("error", time.Since(start))
		return nil, verr
	}
	v.metrics.RecordValidation("success", time.Since(start))

	return &Claims{
		Subject:   tok.Subject(),
		Issuer:    tok.Issuer(),
		Audience:  tok.Audience(),
		Scopes:    scopes(tok),
		ExpiresAt: tok.Expiration(),
	}, nil
}

func classify(err error) *ValidationError {
	switch {
	case errors.Is(err, jwxjwt.ErrTokenExpired()):
		return newValidationError(ErrTokenExpired, err)
	case errors.Is(err, jwxjwt.ErrTokenNotYetValid()):
		return newValidationError(ErrTokenNotYetValid, err)
	case errors.Is(err, jwxjwt.ErrInvalidIssuer()):
		return newValidationError(ErrInvalidIssuer, err)
	default:
		return newValidationError(ErrInvalidToken, err)
	}
}

// scopes reads the space-separated "scope" claim, or the "scp" list some
// providers emit instead.
func scopes(tok jwxjwt.Token) []string {
	if raw, ok := tok.Get("scope"); ok {
		if s, ok := raw.(string); ok {
			return strings.Fields(s)
		}
	}
	raw, ok := tok.Get("scp")
	if !ok {
		return nil
	}
	switch s := raw.(type) {
	case string:
		return strings.Fields(s)
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Ensure validator implements Validator.
var _ Validator = (*KeySetValidator)(nil)
