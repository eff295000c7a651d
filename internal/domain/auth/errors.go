package auth

import "errors"

// Sentinel errors for bearer-token authentication. Transport adapters map
// these to the protocol-appropriate rejection (401 with a WWW-Authenticate
// challenge on HTTP).
var (
	// ErrMissingToken is returned when no Authorization header is present.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned when introspection reports the token
	// inactive, or the introspection call itself rejects it.
	ErrInvalidToken = errors.New("invalid bearer token")
	// ErrInsufficientScope is returned when an active token lacks every
	// accepted scope.
	ErrInsufficientScope = errors.New("insufficient scope")
)
