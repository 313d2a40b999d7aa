// Package content defines the contract for binder's content stores.
//
// A content store owns the raw bytes of every uploaded file. Blobs are
// addressed by their entry path, the same logical path the entry index
// records, so the container mirrors what clients see:
//
//	entry path:  "report.pdf"
//	fs blob:     "<container_root>/report.pdf"
//	s3 blob:     "<bucket>/<key_prefix>report.pdf"
//
// The store is the source of truth for "do this file's bytes exist". It knows
// nothing about the entry index; keeping the two consistent is the job of the
// storage coordinator (pkg/storage).
package content

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Size uint64

	// ModTime is the time of the last write to the blob.
	ModTime time.Time
}

// Store manages byte payloads rooted at a configured container.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Concurrent writes to the
// same path are not serialized: appends from two writers may interleave.
type Store interface {
	// Write appends the bytes read from r to the blob at path, creating the
	// blob and any missing parent directories. Existing content is never
	// truncated. A failure part-way through leaves the bytes written so far
	// in place.
	//
	// Returns the number of bytes appended. Disk-full conditions are reported
	// as ErrStorageFull.
	Write(ctx context.Context, path string, r io.Reader) (int64, error)

	// Read opens the blob at path for streaming. The caller must close the
	// returned reader. Returns ErrContentNotFound if the blob is absent.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove deletes the blob at path. Returns ErrContentNotFound if the blob
	// is already absent; callers decide whether that is fatal.
	Remove(ctx context.Context, path string) error

	// Exists reports whether a blob is stored at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns the size and last write time of the blob at path.
	// Returns ErrContentNotFound if the blob is absent.
	Stat(ctx context.Context, path string) (BlobInfo, error)

	// TotalSize sums the sizes of all blobs directly under the container
	// root. Listing errors are logged and degrade the result; TotalSize never
	// fails the caller.
	TotalSize(ctx context.Context) uint64

	// List returns the entry paths of all blobs directly under the container
	// root.
	List(ctx context.Context) ([]string, error)

	// Locate returns the physical location of path inside this store. It
	// performs no I/O and does not check that the blob exists.
	Locate(path string) string

	// Close releases any resources held by the store.
	Close() error
}
