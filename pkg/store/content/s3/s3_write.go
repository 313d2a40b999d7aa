package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/binder/pkg/store/content"
)

// Write appends the bytes read from src to the object at p.
//
// The source is buffered in memory first, so unlike the filesystem store a
// failing reader leaves the object untouched. The append itself takes one of
// three paths:
//
//   - Object absent: a single PutObject creates it.
//   - Object smaller than minPartSize: download, concatenate, PutObject.
//   - Larger objects: a multipart upload copies the existing object
//     server-side as part 1 and uploads the new bytes as part 2.
//
// S3 keys have no parent directories, so nested paths need no extra work.
func (s *S3ContentStore) Write(ctx context.Context, p string, src io.Reader) (int64, error) {
	// ========================================================================
	// Step 1: Validate and buffer the payload
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	key, err := s.getObjectKey(p)
	if err != nil {
		return 0, err
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return 0, fmt.Errorf("failed to read source for %s: %w", p, err)
	}

	// ========================================================================
	// Step 2: Inspect the existing object
	// ========================================================================

	existing, err := s.head(ctx, key)
	if err != nil {
		if !isNotFound(err) {
			return 0, fmt.Errorf("failed to head object %s: %w", key, err)
		}
		if err := s.put(ctx, key, data); err != nil {
			return 0, err
		}
		return int64(len(data)), nil
	}

	if len(data) == 0 {
		return 0, nil
	}

	// ========================================================================
	// Step 3: Append
	// ========================================================================

	if existing.Size < minPartSize {
		current, err := s.getAll(ctx, key)
		if err != nil {
			return 0, err
		}
		if err := s.put(ctx, key, append(current, data...)); err != nil {
			return 0, err
		}
	} else if err := s.appendByCopy(ctx, key, data); err != nil {
		return 0, err
	}

	return int64(len(data)), nil
}

// Remove deletes the object at p.
//
// DeleteObject succeeds for missing keys, so existence is checked first to
// report content.ErrContentNotFound.
func (s *S3ContentStore) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, err := s.getObjectKey(p)
	if err != nil {
		return err
	}

	if _, err := s.head(ctx, key); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("content %s: %w", p, content.ErrContentNotFound)
		}
		return fmt.Errorf("failed to head object %s: %w", key, err)
	}

	start := time.Now()
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	s.metrics.ObserveOperation("delete", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	return nil
}

func (s *S3ContentStore) put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	s.metrics.ObserveOperation("put", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}

	s.metrics.RecordBytes("write", int64(len(data)))
	return nil
}

func (s *S3ContentStore) getAll(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	s.metrics.ObserveOperation("get", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	s.metrics.RecordBytes("read", int64(len(data)))
	return data, nil
}
