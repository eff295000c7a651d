// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the enriched logger.
// Used by HTTP middleware to store and retrieve the logger with the
// request_id field attached.
type LoggerKey struct{}

// PrincipalKey is the context key type for the authenticated principal.
// Set by the bearer auth middleware on the HTTP transports; never set
// on the stdio path.
type PrincipalKey struct{}

// RequestIDKey is the context key type for the request correlation ID.
type RequestIDKey struct{}

// RealIPKey is the context key type for the client's real IP address,
// resolved from proxy headers by the HTTP middleware.
type RealIPKey struct{}
