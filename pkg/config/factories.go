package config

import (
	"fmt"

	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/quota"
	"github.com/marmos91/binder/pkg/reconcile"
	"github.com/marmos91/binder/pkg/storage"
	"github.com/marmos91/binder/pkg/store/content"
	"github.com/marmos91/binder/pkg/store/index"
)

// CreatePolicy converts the quota section into a byte limit.
func CreatePolicy(cfg *QuotaConfig) (quota.Policy, error) {
	policy, err := quota.NewPolicy(cfg.Limit, cfg.Unit)
	if err != nil {
		return quota.Policy{}, fmt.Errorf("invalid container limit: %w", err)
	}
	return policy, nil
}

// CreateCoordinator wires the stores and the container limit into a storage
// coordinator.
//
// Parameters:
//   - cfg: The complete binder configuration
//   - cs: Content store created by CreateContentStore
//   - is: Entry index created by CreateIndexStore
//   - m: Optional storage metrics (nil disables)
//
// Returns:
//   - *storage.Coordinator: Ready-to-use coordinator
//   - error: Invalid limit or missing store
func CreateCoordinator(cfg *Config, cs content.Store, is index.Store, m storage.Metrics) (*storage.Coordinator, error) {
	policy, err := CreatePolicy(&cfg.Quota)
	if err != nil {
		return nil, err
	}

	coord, err := storage.New(storage.Config{
		Content: cs,
		Index:   is,
		Policy:  policy,
		Metrics: m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage coordinator: %w", err)
	}

	logger.Info("Container limit: %s", policy)
	return coord, nil
}

// CreateReconciler builds the reconciler from the reconcile section.
//
// The reconciler is always created so that on-demand runs work; Enabled only
// controls the periodic worker. With a memory index in front of a persistent
// content store, deleting orphans is downgraded to reporting them: after a
// restart every stored blob looks orphaned.
func CreateReconciler(cfg *Config, cs content.Store, is index.Store, m reconcile.Metrics) (*reconcile.Reconciler, error) {
	rc := cfg.Reconcile
	if volatileIndex(cfg) && rc.Orphans == string(reconcile.OrphanDelete) && !rc.DryRun {
		logger.Warn("Memory index with a persistent %s content store: reporting orphaned blobs instead of deleting them",
			cfg.Content.Type)
		rc.Orphans = string(reconcile.OrphanReport)
	}

	r, err := reconcile.New(cs, is, reconcile.Config{
		Enabled:     rc.Enabled,
		Interval:    rc.Interval,
		Timeout:     rc.Timeout,
		DryRun:      rc.DryRun,
		Orphans:     reconcile.OrphanPolicy(rc.Orphans),
		GracePeriod: rc.GracePeriod,
	}, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciler: %w", err)
	}
	return r, nil
}

// volatileIndex reports whether entries are lost on restart while blobs are
// kept.
func volatileIndex(cfg *Config) bool {
	return cfg.Index.Type == "memory" && cfg.Content.Type != "memory"
}
