package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/reconcile"
	"github.com/marmos91/binder/pkg/server"
	"github.com/marmos91/binder/pkg/storage"
	"github.com/marmos91/binder/pkg/store/content"
	"github.com/marmos91/binder/pkg/store/index"
)

// Runtime holds every component built from a configuration.
type Runtime struct {
	Config      *Config
	Metrics     *MetricsResult
	Content     content.Store
	Index       index.Store
	Coordinator *storage.Coordinator
	Reconciler  *reconcile.Reconciler
	Server      *server.BinderServer
}

// InitializeRuntime creates a fully wired binder process from the provided
// configuration.
//
// This function orchestrates the complete initialization process:
//  1. Creates the content store and the entry index
//  2. Wraps them in a storage coordinator with the container limit
//  3. Creates the reconciler and the HTTP adapter
//  4. Registers adapter and reconciler with a BinderServer
//
// Stores opened before a failure are closed again.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: Validated configuration
//   - m: Metrics created by InitializeMetrics
//
// Returns:
//   - *Runtime: Ready to Serve
//   - error: If any component fails to initialize
//
// Example:
//
//	cfg, _ := config.Load("config.yaml")
//	rt, err := config.InitializeRuntime(ctx, cfg, config.InitializeMetrics(cfg))
//	if err != nil {
//	    log.Fatalf("Failed to initialize binder: %v", err)
//	}
//	defer rt.Close()
func InitializeRuntime(ctx context.Context, cfg *Config, m *MetricsResult) (rt *Runtime, err error) {
	logger.Debug("Initializing runtime from configuration")

	if m == nil {
		m = &MetricsResult{}
	}
	rt = &Runtime{Config: cfg, Metrics: m}

	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	// Step 1: Stores
	rt.Content, err = CreateContentStore(ctx, &cfg.Content, m.S3Metrics)
	if err != nil {
		return rt, fmt.Errorf("content store: %w", err)
	}

	rt.Index, err = CreateIndexStore(ctx, &cfg.Index)
	if err != nil {
		return rt, fmt.Errorf("entry index: %w", err)
	}

	// Step 2: Coordinator
	rt.Coordinator, err = CreateCoordinator(cfg, rt.Content, rt.Index, m.StorageMetrics)
	if err != nil {
		return rt, err
	}

	// Step 3: Reconciler and adapters
	rt.Reconciler, err = CreateReconciler(cfg, rt.Content, rt.Index, m.ReconcileMetrics)
	if err != nil {
		return rt, err
	}

	rt.Server, err = server.New(rt.Coordinator)
	if err != nil {
		return rt, err
	}
	rt.Server.SetStopTimeout(cfg.Server.ShutdownTimeout)

	// Step 4: Registration
	for _, a := range CreateAdapters(cfg, m.HTTPMetrics, rt.Reconciler) {
		if err = rt.Server.AddAdapter(a); err != nil {
			return rt, fmt.Errorf("failed to register %s adapter: %w", a.Protocol(), err)
		}
	}
	if err = rt.Server.AddService(rt.Reconciler); err != nil {
		return rt, err
	}

	logger.Debug("Runtime ready: content=%s index=%s", cfg.Content.Type, cfg.Index.Type)
	return rt, nil
}

// Close releases the stores. Safe to call on a partially built Runtime.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Index != nil {
		if err := rt.Index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close entry index: %w", err))
		}
	}
	if rt.Content != nil {
		if err := rt.Content.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close content store: %w", err))
		}
	}
	return errors.Join(errs...)
}
