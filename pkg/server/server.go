// Package server runs the protocol adapters and background services of a
// binder process against one shared storage coordinator.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/adapter"
	"github.com/marmos91/binder/pkg/storage"
)

// DefaultStopTimeout bounds the shutdown of adapters and services.
const DefaultStopTimeout = 30 * time.Second

// ErrAlreadyServed is returned by Serve on a second call.
var ErrAlreadyServed = errors.New("server already served")

// Service is a background task with an explicit lifecycle, such as the
// reconciler.
type Service interface {
	Start()
	Stop(ctx context.Context) error
}

// BinderServer manages the lifecycle of the adapters and services sharing a
// storage coordinator.
//
// Lifecycle:
//  1. Creation: New() with the coordinator
//  2. Registration: AddAdapter() and AddService()
//  3. Startup: Serve() starts services, then all adapters concurrently
//  4. Shutdown: ctx cancellation or an adapter failure stops adapters in
//     reverse order, then services
//
// Thread safety:
// Registration methods may be called concurrently before Serve. Serve runs
// at most once.
type BinderServer struct {
	coord *storage.Coordinator

	mu       sync.Mutex
	adapters []adapter.Adapter
	services []Service
	served   bool

	stopTimeout time.Duration
}

// New creates a server around coord.
func New(coord *storage.Coordinator) (*BinderServer, error) {
	if coord == nil {
		return nil, fmt.Errorf("storage coordinator is required")
	}
	return &BinderServer{
		coord:       coord,
		stopTimeout: DefaultStopTimeout,
	}, nil
}

// SetStopTimeout overrides DefaultStopTimeout.
func (s *BinderServer) SetStopTimeout(d time.Duration) {
	if d > 0 {
		s.stopTimeout = d
	}
}

// AddAdapter registers an adapter and injects the coordinator into it.
//
// Returns an error if Serve has been called, or if another adapter already
// uses the same protocol or a non-zero port.
func (s *BinderServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		return fmt.Errorf("adapter is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return ErrAlreadyServed
	}

	for _, existing := range s.adapters {
		if existing.Protocol() == a.Protocol() {
			return fmt.Errorf("adapter for protocol %s already registered", a.Protocol())
		}
		if a.Port() != 0 && existing.Port() == a.Port() {
			return fmt.Errorf("port %d already in use by %s adapter", a.Port(), existing.Protocol())
		}
	}

	a.SetCoordinator(s.coord)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", a.Protocol(), a.Port())
	return nil
}

// AddService registers a background service started before the adapters.
func (s *BinderServer) AddService(svc Service) error {
	if svc == nil {
		return fmt.Errorf("service is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return ErrAlreadyServed
	}
	s.services = append(s.services, svc)
	return nil
}

// Serve starts services and adapters and blocks until ctx is cancelled or an
// adapter fails.
//
// Returns:
//   - ctx.Err() after a shutdown triggered by ctx
//   - the adapter's error if one failed
//   - ErrAlreadyServed on a second call
func (s *BinderServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.served = true
	adapters := append([]adapter.Adapter(nil), s.adapters...)
	services := append([]Service(nil), s.services...)
	s.mu.Unlock()

	if len(adapters) == 0 {
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}

	for _, svc := range services {
		svc.Start()
	}

	logger.Info("Starting binder with %d adapter(s)", len(adapters))

	// runCtx lets an adapter failure take the others down.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			err := a.Serve(runCtx)
			switch {
			case err == nil, errors.Is(err, context.Canceled) && runCtx.Err() != nil:
				logger.Debug("%s adapter stopped", a.Protocol())
			default:
				errChan <- adapterError{protocol: a.Protocol(), err: err}
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("%s adapter failed: %v - shutting down", adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	cancelRun()
	s.stopAdapters(stopCtx, adapters)
	wg.Wait()
	s.stopServices(stopCtx, services)

	logger.Info("binder stopped")
	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAdapters signals every adapter in reverse registration order.
func (s *BinderServer) stopAdapters(ctx context.Context, adapters []adapter.Adapter) {
	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		if err := a.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", a.Protocol(), err)
		}
	}
}

func (s *BinderServer) stopServices(ctx context.Context, services []Service) {
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil {
			logger.Error("Error stopping service: %v", err)
		}
	}
}

// Adapters returns a snapshot of the registered adapters.
func (s *BinderServer) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]adapter.Adapter(nil), s.adapters...)
}
