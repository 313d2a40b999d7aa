// Package adapter defines the interface protocol front-ends implement to be
// run by pkg/server.
package adapter

import (
	"context"

	"github.com/marmos91/binder/pkg/storage"
)

// Adapter exposes the storage coordinator over one network protocol.
//
// Lifecycle:
//  1. Construction with protocol-specific configuration
//  2. SetCoordinator, called once by the server before Serve
//  3. Serve, which blocks until ctx is cancelled or a fatal error occurs
//  4. Stop, which may be called concurrently with Serve
//
// Implementations must be safe for concurrent use once Serve has been called.
type Adapter interface {
	// Serve listens and handles requests until ctx is cancelled. It returns
	// nil or ctx.Err() on graceful shutdown.
	Serve(ctx context.Context) error

	// SetCoordinator injects the shared storage coordinator.
	SetCoordinator(coord *storage.Coordinator)

	// Stop initiates a graceful shutdown bounded by ctx. Safe to call more
	// than once.
	Stop(ctx context.Context) error

	// Protocol returns a short protocol name for logging, e.g. "HTTP".
	Protocol() string

	// Port returns the TCP port the adapter listens on.
	Port() int
}
