package config

import (
	"github.com/marmos91/binder/pkg/adapter/rest"
	"github.com/marmos91/binder/pkg/metrics"
	"github.com/marmos91/binder/pkg/reconcile"
	"github.com/marmos91/binder/pkg/storage"
	"github.com/marmos91/binder/pkg/store/content/s3"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// The collectors below are nil when metrics are disabled; every consumer
	// falls back to a no-op.
	StorageMetrics   storage.Metrics
	HTTPMetrics      rest.Metrics
	S3Metrics        s3.S3Metrics
	ReconcileMetrics reconcile.Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns nil collectors (consumers use no-op implementations)
//
// Parameters:
//   - cfg: The complete binder configuration
//
// Returns:
//   - MetricsResult containing all metrics components
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(metrics.ServerConfig{
			Port: cfg.Metrics.Port,
		}),
		StorageMetrics:   metrics.NewStorageMetrics(),
		HTTPMetrics:      metrics.NewHTTPMetrics(),
		S3Metrics:        metrics.NewS3Metrics(),
		ReconcileMetrics: metrics.NewReconcileMetrics(),
	}
}
