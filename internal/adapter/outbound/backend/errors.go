package backend

import "fmt"

// Kind classifies a knowledge API failure into the gateway's error taxonomy.
type Kind int

const (
	// KindUnavailable covers network failures and timed-out calls.
	// Timed-out calls are never retried; tool calls may have side effects.
	KindUnavailable Kind = iota
	// KindClient covers 4xx responses, re-expressed generically.
	KindClient
	// KindServer covers 5xx responses. Backend detail is never echoed.
	KindServer
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a normalized knowledge API failure. Message is already safe to
// show to clients: it carries no backend stack traces, SQL fragments, or
// internal paths.
type Error struct {
	// Kind is the taxonomy classification.
	Kind Kind
	// Status is the HTTP status code, 0 for network-level failures.
	Status int
	// Message is the sanitized, client-visible message.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("knowledge api: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("knowledge api: %s", e.Message)
}

// sanitizeStatus maps an HTTP status to the client-visible message.
// 5xx always collapses to a generic internal error.
func sanitizeStatus(status int) string {
	if status >= 500 {
		return "Internal server error"
	}
	switch status {
	case 400, 422:
		return "Invalid request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Resource not found"
	case 409:
		return "Conflict"
	case 429:
		return "Too many requests"
	default:
		return "Request failed"
	}
}
