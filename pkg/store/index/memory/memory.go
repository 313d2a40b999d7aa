// Package memory implements an in-memory entry index.
//
// It is intended for tests and ephemeral deployments; entries are lost when
// the process exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/binder/pkg/store/index"
)

// MemoryIndexStore implements index.Store with two maps guarded by a single
// RWMutex. Sessions are bounded by an index.Slots semaphore so pool
// exhaustion behaves like the persistent backends.
type MemoryIndexStore struct {
	mu     sync.RWMutex
	byID   map[int64]string
	byPath map[string]int64
	slots  *index.Slots
	closed atomic.Bool
}

// Config configures the in-memory index.
type Config struct {
	// PoolSize bounds concurrent sessions. Default: 10.
	PoolSize int

	// AcquireTimeout bounds the wait for a session. Default: 30s.
	AcquireTimeout time.Duration
}

// NewMemoryIndexStore creates an empty in-memory index.
func NewMemoryIndexStore(ctx context.Context, cfg Config) (*MemoryIndexStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	return &MemoryIndexStore{
		byID:   make(map[int64]string),
		byPath: make(map[string]int64),
		slots:  index.NewSlots(poolSize, cfg.AcquireTimeout),
	}, nil
}

// Acquire takes a session slot.
func (s *MemoryIndexStore) Acquire(ctx context.Context) (index.Session, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("index closed: %w", index.ErrUnavailable)
	}
	if err := s.slots.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire index session: %w", err)
	}
	return &session{store: s}, nil
}

// Healthcheck fails once the store is closed.
func (s *MemoryIndexStore) Healthcheck(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("index closed: %w", index.ErrUnavailable)
	}
	return ctx.Err()
}

// Close marks the store unavailable. Entries are kept until the store is
// garbage collected.
func (s *MemoryIndexStore) Close() error {
	s.closed.Store(true)
	return nil
}

type session struct {
	store    *MemoryIndexStore
	released bool
}

func (c *session) check(ctx context.Context) error {
	if c.released {
		return index.ErrReleased
	}
	return ctx.Err()
}

func (c *session) Find(ctx context.Context, id int64) (*index.Entry, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}

	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	p, ok := c.store.byID[id]
	if !ok {
		return nil, nil
	}
	return &index.Entry{ID: id, Path: p}, nil
}

func (c *session) FindByPath(ctx context.Context, p string) (*index.Entry, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}

	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	id, ok := c.store.byPath[p]
	if !ok {
		return nil, nil
	}
	return &index.Entry{ID: id, Path: p}, nil
}

func (c *session) ListAll(ctx context.Context) ([]index.Entry, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}

	c.store.mu.RLock()
	entries := make([]index.Entry, 0, len(c.store.byPath))
	for p, id := range c.store.byPath {
		entries = append(entries, index.Entry{ID: id, Path: p})
	}
	c.store.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (c *session) Insert(ctx context.Context, e index.Entry) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, ok := c.store.byPath[e.Path]; ok {
		return fmt.Errorf("insert %q: %w", e.Path, index.ErrDuplicatePath)
	}
	if _, ok := c.store.byID[e.ID]; ok {
		return fmt.Errorf("insert id %d: %w", e.ID, index.ErrDuplicateID)
	}

	c.store.byID[e.ID] = e.Path
	c.store.byPath[e.Path] = e.ID
	return nil
}

func (c *session) RemoveByPath(ctx context.Context, p string) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if id, ok := c.store.byPath[p]; ok {
		delete(c.store.byID, id)
		delete(c.store.byPath, p)
	}
	return nil
}

func (c *session) Release() {
	if c.released {
		return
	}
	c.released = true
	c.store.slots.Release()
}
