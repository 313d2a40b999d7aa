package config

import (
	"strings"
	"time"

	"github.com/marmos91/binder/pkg/quota"
	"github.com/marmos91/binder/pkg/reconcile"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
//   - Required values without a sensible default (token, address, paths,
//     container limit) are left empty for Validate to report
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyQuotaDefaults(&cfg.Quota)
	applyContentDefaults(&cfg.Content)
	applyIndexDefaults(&cfg.Index)
	applyMetricsDefaults(&cfg.Metrics)
	applyReconcileDefaults(&cfg.Reconcile)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.PublicAddress == "" {
		cfg.PublicAddress = cfg.Address
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	// Uploads stream whole files, so read and write get generous defaults
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.RateLimit.RequestsPerSecond > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = cfg.RateLimit.RequestsPerSecond
	}
}

// applyQuotaDefaults fills in the unit only. The limit is required.
func applyQuotaDefaults(cfg *QuotaConfig) {
	if cfg.Unit == "" {
		cfg.Unit = quota.DefaultUnit
	}
}

// applyContentDefaults sets content store defaults.
func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	// Initialize maps if nil
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Memory["root"]; !ok {
		cfg.Memory["root"] = "/binder"
	}
	if _, ok := cfg.S3["max_retries"]; !ok {
		cfg.S3["max_retries"] = 10
	}
}

// applyIndexDefaults sets entry index defaults.
func applyIndexDefaults(cfg *IndexConfig) {
	if cfg.Type == "" {
		cfg.Type = "sqlite"
	}

	if cfg.SQLite == nil {
		cfg.SQLite = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}

	// Pool settings apply to every backend
	for _, opts := range []map[string]any{cfg.SQLite, cfg.Badger, cfg.Memory} {
		if _, ok := opts["pool_size"]; !ok {
			opts["pool_size"] = 10
		}
		if _, ok := opts["acquire_timeout"]; !ok {
			opts["acquire_timeout"] = "30s"
		}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyReconcileDefaults(cfg *ReconcileConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.Orphans == "" {
		cfg.Orphans = string(reconcile.OrphanDelete)
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = reconcile.DefaultGracePeriod
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// Unlike ApplyDefaults it also fills the required settings with sample
// values, so the result is a valid starting point for a config file. The
// token is left empty and must be provided.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Address: "0.0.0.0:8080",
		},
		Quota: QuotaConfig{
			Limit: 5,
		},
		Content: ContentConfig{
			Filesystem: map[string]any{
				"path": "/var/lib/binder/content",
			},
		},
		Index: IndexConfig{
			SQLite: map[string]any{
				"path": "/var/lib/binder/index.db",
			},
			Badger: map[string]any{
				"db_path": "/var/lib/binder/index",
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
