package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Empty(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" || cfg.Logging.Format != "text" || cfg.Logging.Output != "stdout" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Server.ReadTimeout != 5*time.Minute || cfg.Server.WriteTimeout != 5*time.Minute {
		t.Errorf("Unexpected read/write timeouts: %v/%v", cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("Expected idle timeout 2m, got %v", cfg.Server.IdleTimeout)
	}
	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content type 'filesystem', got %q", cfg.Content.Type)
	}
	if cfg.Index.Type != "sqlite" {
		t.Errorf("Expected default index type 'sqlite', got %q", cfg.Index.Type)
	}
	if cfg.Index.SQLite["pool_size"] != 10 || cfg.Index.SQLite["acquire_timeout"] != "30s" {
		t.Errorf("Unexpected pool defaults: %v", cfg.Index.SQLite)
	}
	if cfg.Reconcile.Interval != time.Hour || cfg.Reconcile.Timeout != 10*time.Minute {
		t.Errorf("Unexpected reconcile timing: %v/%v", cfg.Reconcile.Interval, cfg.Reconcile.Timeout)
	}
	if cfg.Reconcile.Enabled {
		t.Error("Reconcile must be opt-in")
	}
	if cfg.Auth.Token != "" {
		t.Error("A token must never be invented")
	}
	if cfg.Quota.Limit != 0 || cfg.Quota.Unit != "GB" {
		t.Errorf("Expected no limit and unit GB, got %+v", cfg.Quota)
	}
	if cfg.Reconcile.GracePeriod != 15*time.Minute {
		t.Errorf("Expected grace period 15m, got %v", cfg.Reconcile.GracePeriod)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Address:         ":8080",
			PublicAddress:   "files.example:443",
			ShutdownTimeout: 5 * time.Second,
		},
		Quota: QuotaConfig{Limit: 100, Unit: "MiB"},
		Index: IndexConfig{
			Type:   "memory",
			Memory: map[string]any{"pool_size": 2},
		},
		Reconcile: ReconcileConfig{Orphans: "report"},
	}
	ApplyDefaults(cfg)

	if cfg.Server.PublicAddress != "files.example:443" {
		t.Errorf("Public address overwritten: %q", cfg.Server.PublicAddress)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Shutdown timeout overwritten: %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Quota.Limit != 100 || cfg.Quota.Unit != "MiB" {
		t.Errorf("Quota overwritten: %+v", cfg.Quota)
	}
	if cfg.Index.Memory["pool_size"] != 2 {
		t.Errorf("Pool size overwritten: %v", cfg.Index.Memory["pool_size"])
	}
	if cfg.Reconcile.Orphans != "report" {
		t.Errorf("Orphan policy overwritten: %q", cfg.Reconcile.Orphans)
	}
}

func TestApplyDefaults_BurstFollowsRate(t *testing.T) {
	cfg := &Config{Server: ServerConfig{RateLimit: RateLimitConfig{RequestsPerSecond: 50}}}
	ApplyDefaults(cfg)

	if cfg.Server.RateLimit.Burst != 50 {
		t.Errorf("Expected burst 50, got %d", cfg.Server.RateLimit.Burst)
	}
}

func TestGetDefaultConfig_NeedsOnlyToken(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected default config without token to fail validation")
	}

	cfg.Auth.Token = "s3cret"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected default config with token to validate, got: %v", err)
	}
}
