// Package auth contains the domain types and logic for bearer-token
// authentication on the remote transports.
package auth

import (
	"context"
	"time"
)

// Scopes the gateway accepts. A token is sufficient when its scope set
// intersects this list.
const (
	// ScopeMCP grants full access to the MCP surface.
	ScopeMCP = "mcp"
	// ScopeRead grants read access to the knowledge API.
	ScopeRead = "read"
)

// Principal represents an authenticated remote caller.
type Principal struct {
	// ClientID is the OAuth client the token was issued to.
	ClientID string
	// Scopes are the granted scopes from introspection.
	Scopes []string
	// Token is the raw bearer credential, forwarded to the knowledge API
	// on backend calls made within this principal's sessions.
	Token string
}

// HasScope returns true if the principal was granted the given scope.
func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Sufficient returns true if the principal's scopes intersect the
// gateway's accepted scopes.
func (p *Principal) Sufficient() bool {
	return p.HasScope(ScopeMCP) || p.HasScope(ScopeRead)
}

// Introspection is the normalized result of an RFC 7662 token
// introspection call.
type Introspection struct {
	// Active reports whether the token is currently valid.
	Active bool
	// Scopes are the space-delimited scopes, split.
	Scopes []string
	// ClientID is the client the token was issued to.
	ClientID string
	// ExpiresAt is the token expiry (zero when the server omitted exp).
	ExpiresAt time.Time
}

// Introspector validates bearer tokens against the authorization server.
// Implementations cache positive results until token expiry.
type Introspector interface {
	// Authenticate validates the bearer token and returns the principal.
	// Returns ErrMissingToken, ErrInvalidToken, or ErrInsufficientScope
	// on rejection.
	Authenticate(ctx context.Context, token string) (*Principal, error)
}
