package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/binder/internal/logger"
)

// appendByCopy appends data to an existing object of at least minPartSize
// bytes without downloading it.
//
// Part 1 is a server-side copy of the current object; part 2 carries the new
// bytes. The final part of a multipart upload may be any size, so data has no
// lower bound. On failure the upload is aborted and the original object is
// left as it was.
func (s *S3ContentStore) appendByCopy(ctx context.Context, key string, data []byte) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation("append_copy", time.Since(start), err)
	}()

	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to create multipart upload: %w", err)
	}
	uploadID := created.UploadId

	defer func() {
		if err != nil {
			s.abort(key, uploadID)
		}
	}()

	copied, err := s.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(key),
		UploadId:   uploadID,
		PartNumber: aws.Int32(1),
		CopySource: aws.String(s.escapeCopySource(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to copy existing object as part 1: %w", err)
	}

	var copyETag *string
	if copied.CopyPartResult != nil {
		copyETag = copied.CopyPartResult.ETag
	}

	uploaded, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		UploadId:      uploadID,
		PartNumber:    aws.Int32(2),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload appended part: %w", err)
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: []types.CompletedPart{
				{ETag: copyETag, PartNumber: aws.Int32(1)},
				{ETag: uploaded.ETag, PartNumber: aws.Int32(2)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	s.metrics.RecordBytes("write", int64(len(data)))
	return nil
}

// abort cancels an in-progress upload. It runs on a fresh context so a
// cancelled request still cleans up.
func (s *S3ContentStore) abort(key string, uploadID *string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
	})
	if err != nil {
		var noSuchUpload *types.NoSuchUpload
		if !errors.As(err, &noSuchUpload) {
			logger.Warn("Failed to abort multipart upload for %s: %v", key, err)
		}
	}
}
