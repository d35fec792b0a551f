package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/strategyforge/gateway/internal/observability"
)

// RejectionBody is written with status 401 for every rejected request.
const RejectionBody = `{"error":"Unauthorized","detail":"Missing or invalid credentials"}`

// Authenticator admits or rejects requests according to its mode.
type Authenticator struct {
	mode        Mode
	verifiers   []Verifier
	publicPaths []string
	logger      observability.Logger
	metrics     *Metrics
}

// AuthenticatorOption is a functional option for the authenticator.
type AuthenticatorOption func(*Authenticator)

// WithAuthenticatorLogger sets the logger.
func WithAuthenticatorLogger(logger observability.Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// WithAuthenticatorMetrics sets the metrics.
func WithAuthenticatorMetrics(metrics *Metrics) AuthenticatorOption {
	return func(a *Authenticator) {
		a.metrics = metrics
	}
}

// WithPublicPaths sets the path prefixes admitted without credentials.
func WithPublicPaths(prefixes ...string) AuthenticatorOption {
	return func(a *Authenticator) {
		a.publicPaths = nil
		for _, p := range prefixes {
			if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
				a.publicPaths = append(a.publicPaths, p)
			}
		}
	}
}

// NewAuthenticator builds the gate for mode. verifiers must contain one
// verifier of every type the mode consults; extra verifiers are ignored.
func NewAuthenticator(mode Mode, verifiers []Verifier, opts ...AuthenticatorOption) (*Authenticator, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	a := &Authenticator{
		mode:   mode,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = GetSharedMetrics()
	}

	byType := make(map[AuthType]Verifier, len(verifiers))
	for _, v := range verifiers {
		if v != nil {
			byType[v.Type()] = v
		}
	}
	for _, t := range mode.requires() {
		v, ok := byType[t]
		if !ok {
			return nil, fmt.Errorf("%w: mode %s needs a %s verifier", ErrMissingVerifier, mode, t)
		}
		a.verifiers = append(a.verifiers, v)
	}

	return a, nil
}

// Mode returns the gate's mode.
func (a *Authenticator) Mode() Mode {
	return a.mode
}

// IsPublic reports whether path falls under a public prefix. A prefix
// matches itself and anything below it, not siblings sharing its spelling.
func (a *Authenticator) IsPublic(path string) bool {
	for _, p := range a.publicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Authenticate returns the identity for r or an error wrapping
// ErrNoCredentials or ErrInvalidCredentials. Public paths are not
// consulted here; callers check IsPublic first.
func (a *Authenticator) Authenticate(r *http.Request) (*Identity, error) {
	start := time.Now()

	if a.mode == ModeOpen {
		a.metrics.RecordRequest(string(a.mode), "admitted", time.Since(start))
		return AnonymousIdentity(), nil
	}

	var authErr error
	for _, v := range a.verifiers {
		identity, err := v.Verify(r)
		if err == nil {
			a.metrics.RecordRequest(string(a.mode), "admitted", time.Since(start))
			return identity, nil
		}
		// Keep the most specific failure: a presented but wrong credential
		// outranks an absent one.
		if authErr == nil || !errors.Is(err, ErrNoCredentials) {
			authErr = err
		}
		if !errors.Is(err, ErrNoCredentials) {
			a.logger.Debug("credential rejected",
				observability.String("auth_type", string(v.Type())),
				observability.Error(err),
			)
		}
	}

	if authErr == nil {
		authErr = ErrNoCredentials
	}
	a.metrics.RecordRequest(string(a.mode), "rejected", time.Since(start))
	return nil, authErr
}
