package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolateEnv points the default config location at an empty directory so a
// developer's own ~/.config/binder never leaks into a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, `
logging:
  level: "debug"

server:
  address: "127.0.0.1:8080"

auth:
  token: "s3cret"

content:
  type: "filesystem"
  filesystem:
    path: "/srv/binder"

index:
  type: "sqlite"
  sqlite:
    path: "/srv/binder/index.db"

quota:
  limit: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.PublicAddress != "127.0.0.1:8080" {
		t.Errorf("Expected public address to default to address, got %q", cfg.Server.PublicAddress)
	}
	if cfg.Quota.Limit != 5 || cfg.Quota.Unit != "GB" {
		t.Errorf("Expected quota 5 with default unit GB, got %d %s", cfg.Quota.Limit, cfg.Quota.Unit)
	}
	if cfg.Reconcile.Orphans != "delete" {
		t.Errorf("Expected default orphan policy 'delete', got %q", cfg.Reconcile.Orphans)
	}
	if cfg.Content.Filesystem["path"] != "/srv/binder" {
		t.Errorf("Expected filesystem path from file, got %v", cfg.Content.Filesystem["path"])
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("BINDER_ADDRESS", "0.0.0.0:9000")
	t.Setenv("BINDER_STORAGE_TOKEN", "legacy-token")
	t.Setenv("MAIN_CONTAINER_PATH", "/data/container")
	t.Setenv("MAIN_CONTAINER_LIMIT", "20")
	t.Setenv("DATABASE_URL", "sqlite:///data/binder.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config from environment: %v", err)
	}

	if cfg.Server.Address != "0.0.0.0:9000" {
		t.Errorf("Expected address from BINDER_ADDRESS, got %q", cfg.Server.Address)
	}
	if cfg.Auth.Token != "legacy-token" {
		t.Errorf("Expected token from BINDER_STORAGE_TOKEN, got %q", cfg.Auth.Token)
	}
	if cfg.Content.Filesystem["path"] != "/data/container" {
		t.Errorf("Expected path from MAIN_CONTAINER_PATH, got %v", cfg.Content.Filesystem["path"])
	}
	if cfg.Quota.Limit != 20 {
		t.Errorf("Expected limit from MAIN_CONTAINER_LIMIT, got %d", cfg.Quota.Limit)
	}
	if cfg.Index.SQLite["path"] != "sqlite:///data/binder.db" {
		t.Errorf("Expected sqlite path from DATABASE_URL, got %v", cfg.Index.SQLite["path"])
	}
}

func TestLoad_PrefixedEnvironmentWins(t *testing.T) {
	isolateEnv(t)
	t.Setenv("BINDER_ADDRESS", "0.0.0.0:9000")
	t.Setenv("BINDER_SERVER_ADDRESS", "0.0.0.0:9001")
	t.Setenv("BINDER_STORAGE_TOKEN", "legacy-token")
	t.Setenv("BINDER_AUTH_TOKEN", "new-token")
	t.Setenv("BINDER_CONTENT_TYPE", "memory")
	t.Setenv("BINDER_INDEX_TYPE", "memory")
	t.Setenv("BINDER_LOGGING_LEVEL", "warn")
	t.Setenv("BINDER_QUOTA_LIMIT", "5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Address != "0.0.0.0:9001" {
		t.Errorf("Expected BINDER_SERVER_ADDRESS to win, got %q", cfg.Server.Address)
	}
	if cfg.Auth.Token != "new-token" {
		t.Errorf("Expected BINDER_AUTH_TOKEN to win, got %q", cfg.Auth.Token)
	}
	if cfg.Content.Type != "memory" || cfg.Index.Type != "memory" {
		t.Errorf("Expected memory stores, got content=%s index=%s", cfg.Content.Type, cfg.Index.Type)
	}
	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level WARN, got %q", cfg.Logging.Level)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, `
server:
  address: "127.0.0.1:8080"
auth:
  token: "from-file"
content:
  type: memory
index:
  type: memory
quota:
  limit: 3
`)
	t.Setenv("BINDER_QUOTA_LIMIT", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Quota.Limit != 7 {
		t.Errorf("Expected env to override file limit, got %d", cfg.Quota.Limit)
	}
	if cfg.Auth.Token != "from-file" {
		t.Errorf("Expected token from file, got %q", cfg.Auth.Token)
	}
}

func TestLoad_MissingToken(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, `
server:
  address: "127.0.0.1:8080"
content:
  type: memory
index:
  type: memory
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Expected validation error for missing token")
	}
}

func TestLoad_MissingQuotaLimit(t *testing.T) {
	isolateEnv(t)
	base := `
server:
  address: "127.0.0.1:8080"
auth:
  token: "s3cret"
content:
  type: memory
index:
  type: memory
`

	_, err := Load(writeConfig(t, base))
	if err == nil {
		t.Fatal("Expected validation error for missing quota.limit")
	}
	if !strings.Contains(err.Error(), "Limit") {
		t.Errorf("Expected error naming the limit, got: %v", err)
	}

	if _, err := Load(writeConfig(t, base+"quota:\n  limit: 0\n")); err == nil {
		t.Fatal("Expected validation error for a zero quota.limit")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, "server: [unterminated")

	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "BINDER_TEST_DOTENV_VALUE"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv failed: %v", err)
	}
	if got := os.Getenv(key); got != "from-dotenv" {
		t.Errorf("Expected %s=from-dotenv, got %q", key, got)
	}

	if err := loadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("Expected missing .env to be ignored, got %v", err)
	}
}

func TestEnvName(t *testing.T) {
	if got := envName("server.rate_limit.burst"); got != "BINDER_SERVER_RATE_LIMIT_BURST" {
		t.Errorf("Unexpected env name %q", got)
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got := GetConfigDir(); got != filepath.Join(dir, "binder") {
		t.Errorf("Expected %s, got %s", filepath.Join(dir, "binder"), got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join(dir, "binder", "config.yaml") {
		t.Errorf("Unexpected default path %s", got)
	}
	if ConfigExists() {
		t.Error("Expected no config in an empty directory")
	}
}
