package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is the prefix of every binder environment variable.
const EnvPrefix = "BINDER"

// Config represents the complete binder configuration.
//
// This structure captures all configurable aspects of a binder process:
//   - Logging configuration
//   - HTTP server settings (listen address, timeouts, rate limiting)
//   - Upload token
//   - Container limit
//   - Content store selection and configuration (store-specific)
//   - Entry index selection and configuration (store-specific)
//   - Prometheus metrics endpoint
//   - Background reconciliation
//
// Configuration sources (in order of precedence):
//  1. Environment variables (BINDER_*, plus the legacy names listed in legacyEnv)
//  2. A .env file in the working directory
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type and factory
// function. The Config struct contains type-specific sections (e.g.
// content.filesystem, index.sqlite) and only the section matching the
// selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains HTTP server settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Auth holds the upload token
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Quota is the container limit
	Quota QuotaConfig `mapstructure:"quota" yaml:"quota"`

	// Content specifies the content store type and type-specific configuration
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// Index specifies the entry index type and type-specific configuration
	Index IndexConfig `mapstructure:"index" yaml:"index"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Reconcile controls the background consistency checker
	Reconcile ReconcileConfig `mapstructure:"reconcile" yaml:"reconcile"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Address is the listen address (host:port)
	Address string `mapstructure:"address" yaml:"address" validate:"required"`

	// PublicAddress is the host:port advertised in upload locations.
	// Defaults to Address.
	PublicAddress string `mapstructure:"public_address" yaml:"public_address"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gte=0"`

	// RateLimit throttles API requests. A zero rate disables it.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures request throttling.
type RateLimitConfig struct {
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             uint `mapstructure:"burst" yaml:"burst"`

	// PerClient keeps one bucket per remote host
	PerClient bool `mapstructure:"per_client" yaml:"per_client"`
}

// AuthConfig holds the shared upload token.
type AuthConfig struct {
	// Token authorizes POST and DELETE requests
	Token string `mapstructure:"token" yaml:"token" validate:"required"`
}

// QuotaConfig is the container limit.
type QuotaConfig struct {
	// Limit is the container size in Unit
	Limit uint64 `mapstructure:"limit" yaml:"limit" validate:"required,gt=0"`

	// Unit is a size suffix such as GB or GiB
	Unit string `mapstructure:"unit" yaml:"unit" validate:"required"`
}

// ContentConfig specifies content store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type ContentConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// IndexConfig specifies entry index configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type IndexConfig struct {
	// Type specifies which index implementation to use
	// Valid values: sqlite, badger, memory
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=sqlite badger memory"`

	// SQLite contains SQLite-specific configuration
	// Only used when Type = "sqlite"
	SQLite map[string]any `mapstructure:"sqlite" yaml:"sqlite"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// ReconcileConfig controls the background reconciler.
type ReconcileConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gte=0"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	DryRun   bool          `mapstructure:"dry_run" yaml:"dry_run"`

	// Orphans selects what happens to blobs without an entry
	// Valid values: delete, adopt, report
	Orphans string `mapstructure:"orphans" yaml:"orphans" validate:"required,oneof=delete adopt report"`

	// GracePeriod is how long a blob must go unwritten before it counts as
	// orphaned. Uploads in flight are younger than this.
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period" validate:"gte=0"`
}

// legacyEnv maps config keys to the environment variable names older
// deployments already set. The BINDER_ form is always checked first.
var legacyEnv = map[string]string{
	"index.sqlite.path":       "DATABASE_URL",
	"auth.token":              "BINDER_STORAGE_TOKEN",
	"content.filesystem.path": "MAIN_CONTAINER_PATH",
	"quota.limit":             "MAIN_CONTAINER_LIMIT",
	"server.address":          "BINDER_ADDRESS",
}

// envKeys are bound explicitly so they can be set from the environment
// without a config file. viper's AutomaticEnv only resolves keys it already
// knows about.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.public_address",
	"server.shutdown_timeout",
	"server.read_timeout",
	"server.write_timeout",
	"server.idle_timeout",
	"server.rate_limit.requests_per_second",
	"server.rate_limit.burst",
	"server.rate_limit.per_client",
	"quota.unit",
	"content.type",
	"content.s3.bucket",
	"content.s3.region",
	"content.s3.endpoint",
	"content.s3.key_prefix",
	"content.s3.access_key_id",
	"content.s3.secret_access_key",
	"index.type",
	"index.badger.db_path",
	"metrics.enabled",
	"metrics.port",
	"reconcile.enabled",
	"reconcile.interval",
	"reconcile.dry_run",
	"reconcile.orphans",
	"reconcile.grace_period",
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (BINDER_* and legacy names)
//  2. .env file in the working directory
//  3. Configuration file
//  4. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Configure viper
	if err := setupViper(v, configPath); err != nil {
		return nil, err
	}

	// Read configuration file if it exists
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports the variables of path into the process environment.
// Variables already set win. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) error {
	// Environment variables use BINDER_ prefix and underscores
	// Example: BINDER_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envName(key), legacy); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	// Configure config file search
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/binder/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	return nil
}

// envName returns the BINDER_ variable for a config key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// readConfigFile reads the configuration file if it exists.
//
// A missing file, whether searched for or named explicitly, is not an
// error: environment variables alone are a complete configuration.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "binder")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "binder")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
