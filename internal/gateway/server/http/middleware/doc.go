// Package middleware provides the gin middleware chain of the gateway:
// panic recovery, request IDs, access logging, tracing, metrics, CORS,
// security headers, rate limiting, request deadlines and the
// authentication gate.
package middleware
