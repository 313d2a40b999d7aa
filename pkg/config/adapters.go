package config

import (
	"github.com/marmos91/binder/pkg/adapter"
	"github.com/marmos91/binder/pkg/adapter/rest"
	"github.com/marmos91/binder/pkg/auth"
)

// CreateAdapters creates the protocol adapters from the configuration.
//
// Parameters:
//   - cfg: The complete binder configuration
//   - httpMetrics: Optional HTTP metrics collector (nil = no metrics)
//   - reconciler: Optional on-demand reconciler exposed by the admin route
//
// Returns:
//   - []adapter.Adapter: Adapters ready to be added to the server
func CreateAdapters(cfg *Config, httpMetrics rest.Metrics, reconciler rest.Reconciler) []adapter.Adapter {
	httpAdapter := rest.New(rest.Config{
		Address:         cfg.Server.Address,
		PublicAddress:   cfg.Server.PublicAddress,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimit: rest.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
			PerClient:         cfg.Server.RateLimit.PerClient,
		},
	}, auth.NewVerifier(cfg.Auth.Token), httpMetrics)

	if reconciler != nil {
		httpAdapter.SetReconciler(reconciler)
	}

	return []adapter.Adapter{httpAdapter}
}
