package auth

import (
	"context"
	"strings"
	"time"
)

// Capabilities granted by the gate.
const (
	CapabilityUser = "user"

	// ScopeCapabilityPrefix prefixes each OAuth scope of a bearer token.
	ScopeCapabilityPrefix = "SCOPE_"
)

// Principals used when no subject is available.
const (
	PrincipalAnonymous = "anonymous"
	PrincipalAPIKey    = "api-key"
)

// AuthType represents the mechanism that admitted a request.
type AuthType string

// Authentication types.
const (
	AuthTypeJWT       AuthType = "jwt"
	AuthTypeAPIKey    AuthType = "apikey"
	AuthTypeAnonymous AuthType = "anonymous"
)

// Identity is the per-request result of admission.
type Identity struct {
	// Principal names the caller: the token subject, "api-key" or
	// "anonymous".
	Principal string `json:"principal"`

	// AuthType is the mechanism that admitted the request.
	AuthType AuthType `json:"auth_type"`

	// Capabilities are the granted authorities.
	Capabilities []string `json:"capabilities,omitempty"`

	Issuer    string    `json:"iss,omitempty"`
	AuthTime  time.Time `json:"auth_time,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// HasCapability checks if the identity holds capability.
func (i *Identity) HasCapability(capability string) bool {
	for _, c := range i.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Scopes returns the OAuth scopes carried as capabilities.
func (i *Identity) Scopes() []string {
	var out []string
	for _, c := range i.Capabilities {
		if s, ok := strings.CutPrefix(c, ScopeCapabilityPrefix); ok {
			out = append(out, s)
		}
	}
	return out
}

// AnonymousIdentity returns the identity admitted in open mode.
func AnonymousIdentity() *Identity {
	return &Identity{
		Principal:    PrincipalAnonymous,
		AuthType:     AuthTypeAnonymous,
		Capabilities: []string{CapabilityUser},
		AuthTime:     time.Now(),
	}
}

// Context key type for identity.
type identityContextKey struct{}

// ContextWithIdentity adds an identity to the context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity from the context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok && identity != nil
}
