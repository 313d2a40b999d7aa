package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const sampleHeader = `# Binder Configuration File
#
# Every key can be overridden from the environment with the BINDER_ prefix,
# e.g. BINDER_LOGGING_LEVEL=DEBUG or BINDER_QUOTA_LIMIT=20.
#
# Legacy variables are still honoured:
#   BINDER_ADDRESS        -> server.address
#   BINDER_STORAGE_TOKEN  -> auth.token
#   MAIN_CONTAINER_PATH   -> content.filesystem.path
#   MAIN_CONTAINER_LIMIT  -> quota.limit
#   DATABASE_URL          -> index.sqlite.path
#
# auth.token is required and has no default. Set it here or through
# BINDER_AUTH_TOKEN before starting the server. quota.limit is required as
# well; the value below is only a sample.
#
# content.type: filesystem | memory | s3
# index.type:   sqlite | badger | memory
# reconcile.orphans: delete | adopt | report
# reconcile.grace_period: blobs written more recently are never orphans

`

// InitConfig writes a sample configuration file to the default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path of the written file
//   - error: If the file exists and force is false, or on write failure
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	body, err := sampleConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may end up holding the upload token
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// sampleConfig renders the default configuration as commented YAML.
func sampleConfig() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(sampleHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(GetDefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to render sample config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render sample config: %w", err)
	}
	return buf.Bytes(), nil
}
