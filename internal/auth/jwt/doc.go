// Package jwt validates bearer tokens issued by an OpenID Connect provider.
//
// At startup the issuer's discovery document
// (<issuer>/.well-known/openid-configuration) is fetched once to find the
// JWKS endpoint. The key set is then kept in a github.com/lestrrat-go/jwx
// cache that refreshes in the background. A failed discovery or initial key
// fetch fails NewValidator; the gateway refuses to start rather than
// reject every bearer token at runtime.
//
// Tokens are checked for signature, expiry, not-before and issuer, with a
// configurable clock skew:
//
//	v, err := jwt.NewValidator(ctx, jwt.Config{
//	    IssuerURI: "https://keycloak.example.com/realms/strategyforge",
//	    ClockSkew: 30 * time.Second,
//	})
//	claims, err := v.Validate(ctx, token)
package jwt
