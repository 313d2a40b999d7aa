// Package memory implements an in-memory content store for binder.
//
// It is intended for tests and ephemeral deployments; all data is lost when
// the process exits.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/binder/pkg/store/content"
)

// MemoryContentStore implements content.Store using a map of byte slices.
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Reads return a copy of the
// blob so later appends never race with an open reader.
type MemoryContentStore struct {
	root     string
	data     map[string][]byte
	modified map[string]time.Time
	mu       sync.RWMutex
}

// NewMemoryContentStore creates an empty in-memory store. root is used only
// to build Locate results.
func NewMemoryContentStore(ctx context.Context, root string) (*MemoryContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if root == "" {
		root = "memory://"
	}

	return &MemoryContentStore{
		root:     root,
		data:     make(map[string][]byte),
		modified: make(map[string]time.Time),
	}, nil
}

// Write appends the bytes read from src to the blob at p.
//
// The source is drained before the lock is taken, so a failing reader leaves
// the stored blob untouched.
func (s *MemoryContentStore) Write(ctx context.Context, p string, src io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cleaned, err := content.CleanPath(p)
	if err != nil {
		return 0, err
	}

	buf, err := io.ReadAll(src)
	if err != nil {
		return 0, fmt.Errorf("failed to read source for %s: %w", p, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[cleaned] = append(s.data[cleaned], buf...)
	s.modified[cleaned] = time.Now()
	return int64(len(buf)), nil
}

// Read returns a reader over a snapshot of the blob at p.
func (s *MemoryContentStore) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cleaned, err := content.CleanPath(p)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.data[cleaned]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("content %s: %w", p, content.ErrContentNotFound)
	}

	snapshot := make([]byte, len(data))
	copy(snapshot, data)
	return io.NopCloser(bytes.NewReader(snapshot)), nil
}

// Remove deletes the blob at p.
func (s *MemoryContentStore) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cleaned, err := content.CleanPath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[cleaned]; !ok {
		return fmt.Errorf("content %s: %w", p, content.ErrContentNotFound)
	}
	delete(s.data, cleaned)
	delete(s.modified, cleaned)
	return nil
}

// Exists reports whether a blob is stored at p.
func (s *MemoryContentStore) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	cleaned, err := content.CleanPath(p)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	_, ok := s.data[cleaned]
	s.mu.RUnlock()
	return ok, nil
}

// Stat returns the blob's size and the time of its last append.
func (s *MemoryContentStore) Stat(ctx context.Context, p string) (content.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return content.BlobInfo{}, err
	}

	cleaned, err := content.CleanPath(p)
	if err != nil {
		return content.BlobInfo{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[cleaned]
	if !ok {
		return content.BlobInfo{}, fmt.Errorf("content %s: %w", p, content.ErrContentNotFound)
	}
	return content.BlobInfo{Size: uint64(len(data)), ModTime: s.modified[cleaned]}, nil
}

// TotalSize sums blobs stored at the top level. Nested paths are skipped to
// match the flat scan of the other backends.
func (s *MemoryContentStore) TotalSize(ctx context.Context) uint64 {
	if ctx.Err() != nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint64
	for p, data := range s.data {
		if strings.Contains(p, "/") {
			continue
		}
		total += uint64(len(data))
	}
	return total
}

// List returns the top-level blob names, sorted.
func (s *MemoryContentStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	names := make([]string, 0, len(s.data))
	for p := range s.data {
		if !strings.Contains(p, "/") {
			names = append(names, p)
		}
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names, nil
}

// Locate returns root/p.
func (s *MemoryContentStore) Locate(p string) string {
	if strings.HasSuffix(s.root, "/") {
		return s.root + p
	}
	return path.Join(s.root, p)
}

// Close drops all stored blobs.
func (s *MemoryContentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]byte)
	s.modified = make(map[string]time.Time)
	return nil
}
