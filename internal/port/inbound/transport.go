// Package inbound defines the inbound port interfaces for the gateway
// core. Transport adapters (stdio, HTTP) implement these.
package inbound

import (
	"context"
)

// Transport is the inbound port implemented by every transport adapter.
type Transport interface {
	// Start begins serving clients. Blocks until the context is cancelled
	// or an error occurs. Returns nil on graceful shutdown.
	Start(ctx context.Context) error

	// Close gracefully shuts down the transport and cleans up resources.
	Close() error
}
