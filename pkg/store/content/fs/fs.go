// Package fs implements filesystem-based content storage for binder.
//
// Blobs live directly under a container root directory, one regular file per
// entry path. Writes append; nothing in this package ever truncates a blob.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/store/content"
)

// FSContentStore implements content.Store on the local filesystem.
//
// Thread Safety:
// Operations rely on the operating system's per-file semantics. Concurrent
// appends to the same path are not serialized and may interleave.
type FSContentStore struct {
	basePath string
}

// NewFSContentStore creates a filesystem content store rooted at basePath.
//
// The base directory is created with permissions 0755 if it does not exist.
//
// Parameters:
//   - ctx: Context for cancellation
//   - basePath: Container root directory
//
// Returns:
//   - *FSContentStore: Initialized store
//   - error: If the directory cannot be created or the context is cancelled
func NewFSContentStore(ctx context.Context, basePath string) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if basePath == "" {
		return nil, fmt.Errorf("container path is required")
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSContentStore{basePath: basePath}, nil
}

// BasePath returns the container root.
func (r *FSContentStore) BasePath() string {
	return r.basePath
}

// getFilePath resolves an entry path to a location under the container root.
func (r *FSContentStore) getFilePath(p string) (string, error) {
	cleaned, err := content.CleanPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.basePath, filepath.FromSlash(cleaned)), nil
}

// Locate returns container_root/path. It does not touch the filesystem.
func (r *FSContentStore) Locate(p string) string {
	return filepath.Join(r.basePath, filepath.FromSlash(p))
}

// Write appends the contents of src to the blob at p.
//
// The blob is opened with O_APPEND|O_CREATE so existing content is kept and
// new bytes land at the end. Parent directories are created as needed. A
// failed copy leaves whatever was already appended on disk.
func (r *FSContentStore) Write(ctx context.Context, p string, src io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	filePath, err := r.getFilePath(p)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create parent directory for %s: %w", p, mapIOError(err))
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open content %s: %w", p, mapIOError(err))
	}

	n, copyErr := io.Copy(file, src)
	closeErr := file.Close()

	if copyErr != nil {
		return n, fmt.Errorf("failed to append content %s after %d bytes: %w", p, n, mapIOError(copyErr))
	}
	if closeErr != nil {
		return n, fmt.Errorf("failed to close content %s: %w", p, mapIOError(closeErr))
	}

	return n, nil
}

// Read opens the blob at p for streaming.
func (r *FSContentStore) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := r.getFilePath(p)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content %s: %w", p, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}

	return file, nil
}

// Remove deletes the blob at p. A missing blob is reported as
// content.ErrContentNotFound.
func (r *FSContentStore) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := r.getFilePath(p)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("content %s: %w", p, content.ErrContentNotFound)
		}
		return fmt.Errorf("failed to delete content: %w", err)
	}

	return nil
}

// Exists reports whether a regular file is stored at p.
func (r *FSContentStore) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	filePath, err := r.getFilePath(p)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat content: %w", err)
	}

	return info.Mode().IsRegular(), nil
}

// Stat returns the size and modification time of the regular file at p.
func (r *FSContentStore) Stat(ctx context.Context, p string) (content.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return content.BlobInfo{}, err
	}

	filePath, err := r.getFilePath(p)
	if err != nil {
		return content.BlobInfo{}, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return content.BlobInfo{}, fmt.Errorf("content %s: %w", p, content.ErrContentNotFound)
		}
		return content.BlobInfo{}, fmt.Errorf("failed to stat content: %w", err)
	}
	if !info.Mode().IsRegular() {
		return content.BlobInfo{}, fmt.Errorf("content %s: %w", p, content.ErrContentNotFound)
	}

	return content.BlobInfo{Size: uint64(info.Size()), ModTime: info.ModTime()}, nil
}

// TotalSize sums the sizes of regular files directly under the container
// root. Subdirectories are not descended into.
//
// Errors are logged, never returned: an unreadable root yields 0 and an
// unreadable entry is skipped.
func (r *FSContentStore) TotalSize(ctx context.Context) uint64 {
	if err := ctx.Err(); err != nil {
		logger.Warn("Container size scan cancelled: %v", err)
		return 0
	}

	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		logger.Error("Unable to list container %s: %v", r.basePath, err)
		return 0
	}

	var total uint64
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			logger.Warn("Skipping %s in size scan: %v", entry.Name(), err)
			continue
		}
		if info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
	}

	return total
}

// List returns the names of the regular files directly under the container
// root, sorted.
func (r *FSContentStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list container: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}

// Close is a no-op; the filesystem store holds no open descriptors between
// calls.
func (r *FSContentStore) Close() error {
	return nil
}

// mapIOError wraps out-of-space conditions with content.ErrStorageFull so
// callers can distinguish them from other I/O failures.
func mapIOError(err error) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return fmt.Errorf("%w: %w", content.ErrStorageFull, err)
	}
	return err
}
