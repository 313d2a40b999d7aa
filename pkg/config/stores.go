package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/store/content"
	contentfs "github.com/marmos91/binder/pkg/store/content/fs"
	contentmemory "github.com/marmos91/binder/pkg/store/content/memory"
	contents3 "github.com/marmos91/binder/pkg/store/content/s3"
	"github.com/marmos91/binder/pkg/store/index"
	indexbadger "github.com/marmos91/binder/pkg/store/index/badger"
	indexmemory "github.com/marmos91/binder/pkg/store/index/memory"
	indexsqlite "github.com/marmos91/binder/pkg/store/index/sqlite"
	"github.com/mitchellh/mapstructure"
)

// s3YAMLConfig represents S3 configuration loaded from YAML files.
type s3YAMLConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// poolYAMLConfig holds the session pool options of the memory index.
type poolYAMLConfig struct {
	PoolSize       int           `mapstructure:"pool_size"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
}

// decodeOptions decodes a backend option map into out.
//
// Values coming from environment variables are strings, so decoding is
// weakly typed and durations may be written as "30s".
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

// CreateContentStore creates a content store based on configuration.
//
// This factory function uses the Type field to determine which store
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the store's constructor.
//
// Supported types:
//   - "filesystem": pkg/store/content/fs (local directory)
//   - "memory": pkg/store/content/memory (ephemeral, for tests and demos)
//   - "s3": pkg/store/content/s3 (Amazon S3 or compatible storage)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Content store configuration
//   - s3Metrics: Optional S3 metrics (nil disables)
//
// Returns:
//   - content.Store: Initialized content store
//   - error: Configuration or initialization error
func CreateContentStore(ctx context.Context, cfg *ContentConfig, s3Metrics contents3.S3Metrics) (content.Store, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg.Filesystem)
	case "memory":
		return createMemoryContentStore(ctx, cfg.Memory)
	case "s3":
		return createS3ContentStore(ctx, cfg.S3, s3Metrics)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
}

// createFilesystemContentStore creates a filesystem-backed content store.
func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.Store, error) {
	var storeCfg struct {
		Path string `mapstructure:"path"`
	}
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("invalid filesystem config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	store, err := contentfs.NewFSContentStore(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
	}

	logger.Info("Filesystem content store initialized: path=%s", storeCfg.Path)
	return store, nil
}

// createMemoryContentStore creates an in-memory content store.
func createMemoryContentStore(ctx context.Context, options map[string]any) (content.Store, error) {
	var storeCfg struct {
		Root string `mapstructure:"root"`
	}
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("invalid memory config: %w", err)
	}

	store, err := contentmemory.NewMemoryContentStore(ctx, storeCfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory content store: %w", err)
	}

	logger.Warn("Memory content store initialized: stored files are lost on restart")
	return store, nil
}

// createS3ContentStore creates an S3-based content store.
func createS3ContentStore(ctx context.Context, options map[string]any, s3Metrics contents3.S3Metrics) (content.Store, error) {
	var storeCfg s3YAMLConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 content store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 content store: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(storeCfg.Region),
	}

	// Set credentials if provided, otherwise use default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// Retry transient failures (502, 503, timeouts) harder than the SDK default of 3
	maxRetries := storeCfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		// Custom endpoints (MinIO, Localstack) need path-style addressing
		if storeCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create S3 Content Store
	// ========================================================================

	store, err := contents3.NewS3ContentStore(ctx, contents3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
		Metrics:   s3Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// CreateIndexStore creates an entry index based on configuration.
//
// Supported types:
//   - "sqlite": pkg/store/index/sqlite (single database file)
//   - "badger": pkg/store/index/badger (BadgerDB directory)
//   - "memory": pkg/store/index/memory (ephemeral)
func CreateIndexStore(ctx context.Context, cfg *IndexConfig) (index.Store, error) {
	switch cfg.Type {
	case "sqlite":
		return createSQLiteIndexStore(ctx, cfg.SQLite)
	case "badger":
		return createBadgerIndexStore(ctx, cfg.Badger)
	case "memory":
		return createMemoryIndexStore(ctx, cfg.Memory)
	default:
		return nil, fmt.Errorf("unknown index type: %q", cfg.Type)
	}
}

func createSQLiteIndexStore(ctx context.Context, options map[string]any) (index.Store, error) {
	var storeCfg struct {
		Path           string        `mapstructure:"path"`
		PoolSize       int           `mapstructure:"pool_size"`
		AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	}
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("invalid sqlite config: %w", err)
	}

	store, err := indexsqlite.NewSQLiteIndexStore(ctx, indexsqlite.Config{
		Path:           storeCfg.Path,
		PoolSize:       storeCfg.PoolSize,
		AcquireTimeout: storeCfg.AcquireTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite index: %w", err)
	}

	logger.Info("SQLite index initialized: path=%s, pool=%d", storeCfg.Path, storeCfg.PoolSize)
	return store, nil
}

func createBadgerIndexStore(ctx context.Context, options map[string]any) (index.Store, error) {
	var storeCfg struct {
		DBPath           string        `mapstructure:"db_path"`
		BlockCacheSizeMB int64         `mapstructure:"block_cache_size_mb"`
		PoolSize         int           `mapstructure:"pool_size"`
		AcquireTimeout   time.Duration `mapstructure:"acquire_timeout"`
	}
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}

	store, err := indexbadger.NewBadgerIndexStore(ctx, indexbadger.Config{
		DBPath:           storeCfg.DBPath,
		PoolSize:         storeCfg.PoolSize,
		AcquireTimeout:   storeCfg.AcquireTimeout,
		BlockCacheSizeMB: storeCfg.BlockCacheSizeMB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open badger index: %w", err)
	}

	logger.Info("Badger index initialized: path=%s", storeCfg.DBPath)
	return store, nil
}

func createMemoryIndexStore(ctx context.Context, options map[string]any) (index.Store, error) {
	var storeCfg poolYAMLConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("invalid memory index config: %w", err)
	}

	store, err := indexmemory.NewMemoryIndexStore(ctx, indexmemory.Config{
		PoolSize:       storeCfg.PoolSize,
		AcquireTimeout: storeCfg.AcquireTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory index: %w", err)
	}

	logger.Warn("Memory index initialized: entries are lost on restart")
	return store, nil
}
