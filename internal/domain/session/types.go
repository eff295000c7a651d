// Package session manages per-client gateway sessions across MCP calls.
package session

import (
	"time"

	"github.com/fortemi/matric-mcp/internal/domain/auth"
)

// Transport identifies which wire binding owns a session. A session
// belongs to exactly one transport and is never shared across bindings.
type Transport string

const (
	// TransportStdio is the local process-pipe binding.
	TransportStdio Transport = "stdio"
	// TransportStreamableHTTP is the modern single-path HTTP binding.
	TransportStreamableHTTP Transport = "streamable_http"
	// TransportSSE is the legacy two-endpoint SSE binding.
	TransportSSE Transport = "sse"
)

// IsValid returns true if the transport is a known binding.
func (t Transport) IsValid() bool {
	switch t {
	case TransportStdio, TransportStreamableHTTP, TransportSSE:
		return true
	default:
		return false
	}
}

// Remote returns true for bindings that require OAuth authentication.
// The stdio binding's trust boundary is the local process invocation.
func (t Transport) Remote() bool {
	return t == TransportStreamableHTTP || t == TransportSSE
}

// Session tracks one client's identity, transport, and selected knowledge
// namespace across JSON-RPC calls.
type Session struct {
	// ID is a cryptographically random identifier, 32 bytes hex-encoded.
	ID string
	// Transport is the wire binding that created this session.
	Transport Transport
	// Principal is the authenticated caller for remote transports.
	// Nil on stdio, where trust is implicit in the process invocation.
	Principal *auth.Principal
	// ActiveMemory is the knowledge namespace selected for this session.
	// Empty means the backend's default namespace. Changes are visible
	// only within this session.
	ActiveMemory string
	// CreatedAt is when the session was created (UTC).
	CreatedAt time.Time
	// LastActive is the last time a request touched the session (UTC).
	LastActive time.Time
}

// IdleSince returns how long the session has been idle at the given instant.
func (s *Session) IdleSince(now time.Time) time.Duration {
	return now.Sub(s.LastActive)
}

// Expired reports whether the session has been idle longer than timeout.
func (s *Session) Expired(timeout time.Duration) bool {
	return s.IdleSince(time.Now().UTC()) > timeout
}
