// Package s3 implements S3-based content storage for binder.
//
// Each blob is one object whose key is the configured prefix followed by the
// entry path, so the bucket mirrors the container layout:
//
//	entry path:  "report.pdf"
//	key prefix:  "binder/"
//	object key:  "binder/report.pdf"
//
// S3 has no append primitive. Write emulates it by rewriting the object with
// the new bytes added at the end (see s3_write.go).
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/binder/pkg/store/content"
)

const (
	// minPartSize is the smallest non-final part S3 accepts in a multipart
	// upload.
	minPartSize = 5 * 1024 * 1024
)

// Client is the subset of the S3 API the store uses. *s3.Client satisfies it.
type Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPartCopy(ctx context.Context, params *s3.UploadPartCopyInput, optFns ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// S3ContentStore implements content.Store on Amazon S3 or any S3-compatible
// service (MinIO, Localstack).
//
// Thread Safety:
// Safe for concurrent use. Two concurrent appends to the same key race: the
// last object written wins and the other append is lost.
type S3ContentStore struct {
	client    Client
	bucket    string
	keyPrefix string
	metrics   S3Metrics
}

// S3ContentStoreConfig contains configuration for the S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client.
	Client Client

	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// KeyPrefix is prepended to every object key. Use a trailing "/" to get a
	// directory-like layout ("binder/").
	KeyPrefix string

	// Metrics is optional. Nil disables metrics collection.
	Metrics S3Metrics
}

// NewS3ContentStore creates a new S3-based content store and verifies that
// the bucket is reachable.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3ContentStore: Initialized store
//   - error: If the bucket cannot be accessed or the context is cancelled
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	// ========================================================================
	// Step 1: Validate configuration
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	// ========================================================================
	// Step 2: Verify bucket access
	// ========================================================================

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w: %w", cfg.Bucket, content.ErrUnavailable, err)
	}

	return &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		metrics:   metrics,
	}, nil
}

// getObjectKey validates p and returns the full object key.
func (s *S3ContentStore) getObjectKey(p string) (string, error) {
	cleaned, err := content.CleanPath(p)
	if err != nil {
		return "", err
	}
	return s.keyPrefix + cleaned, nil
}

// Locate returns s3://bucket/prefix+path.
func (s *S3ContentStore) Locate(p string) string {
	return "s3://" + s.bucket + "/" + s.keyPrefix + p
}

// Close is a no-op; the SDK client owns its connections.
func (s *S3ContentStore) Close() error {
	return nil
}

// isNotFound reports whether err is S3's "object does not exist" response.
// GetObject returns NoSuchKey; HeadObject has no body and returns NotFound.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// escapeCopySource builds the URL-encoded bucket/key value UploadPartCopy
// expects.
func (s *S3ContentStore) escapeCopySource(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.bucket + "/" + strings.Join(segments, "/")
}
