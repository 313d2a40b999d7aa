package config

import (
	"fmt"
	"net"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/binder/pkg/quota"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.Server.Address); err != nil {
		return fmt.Errorf("server.address: %q is not host:port: %w", cfg.Server.Address, err)
	}
	if _, _, err := net.SplitHostPort(cfg.Server.PublicAddress); err != nil {
		return fmt.Errorf("server.public_address: %q is not host:port: %w", cfg.Server.PublicAddress, err)
	}

	if _, err := quota.NewPolicy(cfg.Quota.Limit, cfg.Quota.Unit); err != nil {
		return fmt.Errorf("quota: %w", err)
	}

	// The selected backend must carry its required option
	switch cfg.Content.Type {
	case "filesystem":
		if optionString(cfg.Content.Filesystem, "path") == "" {
			return fmt.Errorf("content.filesystem.path: required when content.type is filesystem")
		}
	case "s3":
		if optionString(cfg.Content.S3, "bucket") == "" {
			return fmt.Errorf("content.s3.bucket: required when content.type is s3")
		}
		if optionString(cfg.Content.S3, "region") == "" {
			return fmt.Errorf("content.s3.region: required when content.type is s3")
		}
	}

	switch cfg.Index.Type {
	case "sqlite":
		if optionString(cfg.Index.SQLite, "path") == "" {
			return fmt.Errorf("index.sqlite.path: required when index.type is sqlite")
		}
	case "badger":
		if optionString(cfg.Index.Badger, "db_path") == "" {
			return fmt.Errorf("index.badger.db_path: required when index.type is badger")
		}
	}

	// A memory index forgets every entry on restart while a persistent
	// content store keeps the blobs; reconcile would delete them all.
	if cfg.Reconcile.Enabled && volatileIndex(cfg) &&
		cfg.Reconcile.Orphans == "delete" && !cfg.Reconcile.DryRun {
		return fmt.Errorf("reconcile: orphans=delete with a memory index would remove every stored blob")
	}

	return nil
}

// optionString reads a string option from a backend map.
func optionString(options map[string]any, key string) string {
	s, _ := options[key].(string)
	return s
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
