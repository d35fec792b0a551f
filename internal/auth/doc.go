// Package auth implements the gateway's authentication gate.
//
// The gate is built once at startup from a Mode and the credential
// verifiers that mode needs. Each request is either admitted with an
// Identity or rejected with a fixed 401 body that never says which
// mechanism failed.
//
// Supported modes:
//   - ModeOpen: every request is admitted as the anonymous identity
//   - ModeAPIKey: a shared secret in a request header
//   - ModeJWT: a bearer token verified against the issuer's JWKS
//   - ModeAPIKeyOrJWT: the API key first, then the bearer token
//
// Requests whose path falls under a public prefix are admitted without
// an identity.
//
// Example usage:
//
//	keys, _ := apikey.NewValidator(secret)
//	gate, err := auth.NewAuthenticator(auth.ModeAPIKey,
//		[]auth.Verifier{auth.NewAPIKeyVerifier(apikey.NewHeaderExtractor(""), keys)},
//		auth.WithPublicPaths("/actuator", "/error"),
//	)
package auth
