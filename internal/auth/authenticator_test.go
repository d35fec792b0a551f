package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strategyforge/gateway/internal/auth/apikey"
	"github.com/strategyforge/gateway/internal/auth/jwt"
)

type stubJWTValidator struct {
	claims map[string]*jwt.Claims
}

func (s *stubJWTValidator) Validate(_ context.Context, token string) (*jwt.Claims, error) {
	if c, ok := s.claims[token]; ok {
		return c, nil
	}
	return nil, jwt.ErrInvalidToken
}

func newAPIKeyVerifier(t *testing.T, secret string) *APIKeyVerifier {
	t.Helper()
	v, err := apikey.NewValidator(secret, apikey.WithValidatorMetrics(apikey.NewMetrics("test", nil)))
	require.NoError(t, err)
	return NewAPIKeyVerifier(apikey.NewHeaderExtractor(""), v)
}

func newJWTVerifier() *JWTVerifier {
	return NewJWTVerifier(nil, &stubJWTValidator{claims: map[string]*jwt.Claims{
		"good-token": {
			Subject:   "alice",
			Issuer:    "https://idp.example",
			Scopes:    []string{"strategies:read"},
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}})
}

func newGate(t *testing.T, mode Mode, verifiers ...Verifier) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(mode, verifiers,
		WithPublicPaths("/actuator", "/error"),
		WithAuthenticatorMetrics(NewMetrics("test", nil)),
	)
	require.NoError(t, err)
	return a
}

func TestNewAuthenticator_MissingVerifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mode      Mode
		verifiers []Verifier
	}{
		{name: "apikey without verifier", mode: ModeAPIKey},
		{name: "jwt without verifier", mode: ModeJWT, verifiers: []Verifier{newAPIKeyVerifier(t, "k")}},
		{name: "either without jwt", mode: ModeAPIKeyOrJWT, verifiers: []Verifier{newAPIKeyVerifier(t, "k")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewAuthenticator(tt.mode, tt.verifiers)
			assert.ErrorIs(t, err, ErrMissingVerifier)
		})
	}
}

func TestNewAuthenticator_UnknownMode(t *testing.T) {
	t.Parallel()

	_, err := NewAuthenticator(Mode("ldap"), nil)
	assert.ErrorIs(t, err, ErrUnsupportedMode)
}

func TestAuthenticate_Open(t *testing.T) {
	t.Parallel()

	gate := newGate(t, ModeOpen)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-API-Key", "whatever")

	identity, err := gate.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, PrincipalAnonymous, identity.Principal)
	assert.True(t, identity.HasCapability(CapabilityUser))
}

func TestAuthenticate_APIKey(t *testing.T) {
	t.Parallel()

	gate := newGate(t, ModeAPIKey, newAPIKeyVerifier(t, "s3cr3t"))

	tests := []struct {
		name    string
		key     *string
		admit   bool
		wantErr error
	}{
		{name: "correct key", key: strPtr("s3cr3t"), admit: true},
		{name: "wrong key", key: strPtr("wrong"), wantErr: ErrInvalidCredentials},
		{name: "absent", wantErr: ErrNoCredentials},
		{name: "empty", key: strPtr(""), wantErr: ErrNoCredentials},
		{name: "case differs", key: strPtr("S3CR3T"), wantErr: ErrInvalidCredentials},
		{name: "trailing space", key: strPtr("s3cr3t "), wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/strategies/generate", nil)
			if tt.key != nil {
				req.Header["X-Api-Key"] = []string{*tt.key}
			}

			identity, err := gate.Authenticate(req)
			if tt.admit {
				require.NoError(t, err)
				assert.Equal(t, PrincipalAPIKey, identity.Principal)
				assert.Equal(t, AuthTypeAPIKey, identity.AuthType)
				assert.Equal(t, []string{CapabilityUser}, identity.Capabilities)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, identity)
		})
	}
}

func TestAuthenticate_JWT(t *testing.T) {
	t.Parallel()

	gate := newGate(t, ModeJWT, newJWTVerifier())

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/strategies/top", nil)
		req.Header.Set("Authorization", "Bearer good-token")

		identity, err := gate.Authenticate(req)
		require.NoError(t, err)
		assert.Equal(t, "alice", identity.Principal)
		assert.Equal(t, []string{CapabilityUser, "SCOPE_strategies:read"}, identity.Capabilities)
		assert.Equal(t, []string{"strategies:read"}, identity.Scopes())
		assert.Equal(t, "https://idp.example", identity.Issuer)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/strategies/top", nil)
		req.Header.Set("Authorization", "Bearer forged")

		_, err := gate.Authenticate(req)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)

		var authErr *AuthError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, AuthTypeJWT, authErr.Type)
	})

	t.Run("no header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/strategies/top", nil)
		_, err := gate.Authenticate(req)
		assert.ErrorIs(t, err, ErrNoCredentials)
	})

	t.Run("api key ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/strategies/top", nil)
		req.Header.Set("X-API-Key", "s3cr3t")
		_, err := gate.Authenticate(req)
		assert.Error(t, err)
	})
}

func TestAuthenticate_APIKeyOrJWT(t *testing.T) {
	t.Parallel()

	gate := newGate(t, ModeAPIKeyOrJWT, newJWTVerifier(), newAPIKeyVerifier(t, "s3cr3t"))

	tests := []struct {
		name          string
		apiKey        string
		bearer        string
		wantPrincipal string
		wantErr       error
	}{
		{name: "key only", apiKey: "s3cr3t", wantPrincipal: PrincipalAPIKey},
		{name: "token only", bearer: "good-token", wantPrincipal: "alice"},
		{name: "both valid prefers key", apiKey: "s3cr3t", bearer: "good-token", wantPrincipal: PrincipalAPIKey},
		{name: "wrong key valid token", apiKey: "wrong", bearer: "good-token", wantPrincipal: "alice"},
		{name: "wrong key no token", apiKey: "wrong", wantErr: ErrInvalidCredentials},
		{name: "no key bad token", bearer: "forged", wantErr: ErrInvalidCredentials},
		{name: "nothing", wantErr: ErrNoCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			identity, err := gate.Authenticate(req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrincipal, identity.Principal)
		})
	}
}

func TestIsPublic(t *testing.T) {
	t.Parallel()

	gate := newGate(t, ModeAPIKey, newAPIKeyVerifier(t, "s3cr3t"))

	assert.True(t, gate.IsPublic("/actuator"))
	assert.True(t, gate.IsPublic("/actuator/health"))
	assert.True(t, gate.IsPublic("/error"))
	assert.False(t, gate.IsPublic("/actuatorx"))
	assert.False(t, gate.IsPublic("/api/v1/health"))
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"open", "apikey", "jwt", "apikey_or_jwt", " JWT "} {
		_, err := ParseMode(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseMode("basic")
	assert.ErrorIs(t, err, ErrUnsupportedMode)
}

func strPtr(s string) *string {
	return &s
}
