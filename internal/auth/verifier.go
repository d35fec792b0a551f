package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/strategyforge/gateway/internal/auth/apikey"
	"github.com/strategyforge/gateway/internal/auth/jwt"
)

// Verifier checks one kind of credential on a request.
type Verifier interface {
	// Type returns the mechanism the verifier implements.
	Type() AuthType

	// Verify returns the identity for valid credentials, ErrNoCredentials
	// when the request carries none of this kind, or an AuthError.
	Verify(r *http.Request) (*Identity, error)
}

// APIKeyVerifier verifies a shared secret header.
type APIKeyVerifier struct {
	extractor apikey.Extractor
	validator apikey.Validator
}

// NewAPIKeyVerifier creates a verifier from an extractor and a validator.
func NewAPIKeyVerifier(extractor apikey.Extractor, validator apikey.Validator) *APIKeyVerifier {
	if extractor == nil {
		extractor = apikey.NewHeaderExtractor("")
	}
	return &APIKeyVerifier{extractor: extractor, validator: validator}
}

// Type implements Verifier.
func (v *APIKeyVerifier) Type() AuthType {
	return AuthTypeAPIKey
}

// Verify implements Verifier.
func (v *APIKeyVerifier) Verify(r *http.Request) (*Identity, error) {
	key, err := v.extractor.Extract(r)
	if err != nil {
		if errors.Is(err, apikey.ErrMissingAPIKeyHeader) {
			return nil, ErrNoCredentials
		}
		return nil, WrapAuthError(err, AuthTypeAPIKey)
	}

	info, err := v.validator.Validate(r.Context(), key)
	if err != nil {
		return nil, WrapAuthError(err, AuthTypeAPIKey)
	}

	return &Identity{
		Principal:    PrincipalAPIKey,
		AuthType:     AuthTypeAPIKey,
		Capabilities: append([]string(nil), info.Roles...),
		AuthTime:     time.Now(),
	}, nil
}

// JWTVerifier verifies a bearer token.
type JWTVerifier struct {
	extractor jwt.TokenExtractor
	validator jwt.Validator
}

// NewJWTVerifier creates a verifier from an extractor and a validator.
func NewJWTVerifier(extractor jwt.TokenExtractor, validator jwt.Validator) *JWTVerifier {
	if extractor == nil {
		extractor = jwt.NewHeaderExtractor("", "")
	}
	return &JWTVerifier{extractor: extractor, validator: validator}
}

// Type implements Verifier.
func (v *JWTVerifier) Type() AuthType {
	return AuthTypeJWT
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(r *http.Request) (*Identity, error) {
	token, err := v.extractor.Extract(r)
	if err != nil {
		if errors.Is(err, jwt.ErrMissingHeader) {
			return nil, ErrNoCredentials
		}
		return nil, WrapAuthError(err, AuthTypeJWT)
	}

	claims, err := v.validator.Validate(r.Context(), token)
	if err != nil {
		return nil, WrapAuthError(err, AuthTypeJWT)
	}

	capabilities := make([]string, 0, len(claims.Scopes)+1)
	capabilities = append(capabilities, CapabilityUser)
	for _, s := range claims.Scopes {
		capabilities = append(capabilities, ScopeCapabilityPrefix+s)
	}

	return &Identity{
		Principal:    claims.Subject,
		AuthType:     AuthTypeJWT,
		Capabilities: capabilities,
		Issuer:       claims.Issuer,
		AuthTime:     time.Now(),
		ExpiresAt:    claims.ExpiresAt,
	}, nil
}

var (
	_ Verifier = (*APIKeyVerifier)(nil)
	_ Verifier = (*JWTVerifier)(nil)
)
