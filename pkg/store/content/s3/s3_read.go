package s3

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/store/content"
)

// Read streams the object at p. The caller must close the returned reader.
func (s *S3ContentStore) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := s.getObjectKey(p)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	s.metrics.ObserveOperation("get", time.Since(start), err)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("content %s: %w", p, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	return newCountingBody(result.Body, s.metrics), nil
}

// Exists reports whether an object is stored at p.
func (s *S3ContentStore) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key, err := s.getObjectKey(p)
	if err != nil {
		return false, err
	}

	_, err = s.head(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return true, nil
}

// Stat returns the object's size and LastModified time.
func (s *S3ContentStore) Stat(ctx context.Context, p string) (content.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return content.BlobInfo{}, err
	}

	key, err := s.getObjectKey(p)
	if err != nil {
		return content.BlobInfo{}, err
	}

	info, err := s.head(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return content.BlobInfo{}, fmt.Errorf("content %s: %w", p, content.ErrContentNotFound)
		}
		return content.BlobInfo{}, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return info, nil
}

// head returns the object's size and LastModified time.
func (s *S3ContentStore) head(ctx context.Context, key string) (content.BlobInfo, error) {
	start := time.Now()
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	s.metrics.ObserveOperation("head", time.Since(start), err)
	if err != nil {
		return content.BlobInfo{}, err
	}
	return content.BlobInfo{
		Size:    uint64(aws.ToInt64(result.ContentLength)),
		ModTime: aws.ToTime(result.LastModified),
	}, nil
}

// TotalSize sums the objects directly under the key prefix. Listing uses "/"
// as delimiter so nested keys are excluded, matching the flat filesystem
// scan. Errors are logged and the partial sum is returned.
func (s *S3ContentStore) TotalSize(ctx context.Context) uint64 {
	var total uint64

	err := s.walk(ctx, func(_ string, size int64) {
		total += uint64(size)
	})
	if err != nil {
		logger.Error("Unable to list bucket %s prefix %q: %v", s.bucket, s.keyPrefix, err)
	}

	return total
}

// List returns the entry paths of objects directly under the key prefix.
func (s *S3ContentStore) List(ctx context.Context) ([]string, error) {
	var names []string

	err := s.walk(ctx, func(name string, _ int64) {
		names = append(names, name)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket %s: %w", s.bucket, err)
	}

	sort.Strings(names)
	return names, nil
}

// walk pages through the top-level objects under the prefix and calls fn with
// the prefix-relative name and size of each.
func (s *S3ContentStore) walk(ctx context.Context, fn func(name string, size int64)) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.keyPrefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		s.metrics.ObserveOperation("list", time.Since(start), err)
		if err != nil {
			return err
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.keyPrefix)
			if name == "" {
				continue
			}
			fn(name, aws.ToInt64(obj.Size))
		}
	}

	return nil
}
