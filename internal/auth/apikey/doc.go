// Package apikey validates shared-secret API keys.
//
// The gateway holds a single configured secret. A presented key matches when
// it is byte-for-byte equal to the secret; the comparison runs in constant
// time. When the configured secret is a bcrypt hash ($2a$, $2b$ or $2y$
// prefix) the presented key is checked against the hash instead, so the
// plaintext never has to live in configuration.
//
//	validator, err := apikey.NewValidator(secret)
//	extractor := apikey.NewHeaderExtractor("X-API-Key")
//
//	key, err := extractor.Extract(r)
//	info, err := validator.Validate(ctx, key)
package apikey
