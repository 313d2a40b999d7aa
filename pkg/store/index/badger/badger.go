// Package badger implements the entry index on BadgerDB.
//
// Key Namespace:
//
//	Data Type      Prefix   Key Format     Value
//	=========================================================
//	Entry          "e:"     e:<id>         Entry (JSON)
//	Path lookup    "p:"     p:<path>       id (decimal ASCII)
//
// Both keys are written in the same transaction, so the two namespaces never
// disagree. Keys under "p:" sort by path, which gives ListAll its ordering
// for free.
package badger

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/store/index"
)

// Config configures the BadgerDB index.
type Config struct {
	// DBPath is the BadgerDB directory. Created if missing.
	DBPath string

	// PoolSize bounds concurrent sessions. Default: 10.
	PoolSize int

	// AcquireTimeout bounds the wait for a session. Default: 30s.
	AcquireTimeout time.Duration

	// BlockCacheSizeMB sizes Badger's block cache. Default: 64.
	BlockCacheSizeMB int64
}

// BadgerIndexStore implements index.Store.
//
// Thread Safety:
// BadgerDB is safe for concurrent use through its own MVCC transactions.
// Sessions are only bounded, not serialized.
type BadgerIndexStore struct {
	db    *badger.DB
	slots *index.Slots
}

// NewBadgerIndexStore opens (or creates) the database at cfg.DBPath.
func NewBadgerIndexStore(ctx context.Context, cfg Config) (*BadgerIndexStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("badger path is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}

	opts := badger.DefaultOptions(cfg.DBPath).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithBlockCacheSize(blockCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w: %w", cfg.DBPath, index.ErrUnavailable, err)
	}

	logger.Debug("Badger index opened: path=%s pool_size=%d", cfg.DBPath, poolSize)

	return &BadgerIndexStore{
		db:    db,
		slots: index.NewSlots(poolSize, cfg.AcquireTimeout),
	}, nil
}

// Acquire takes a session slot.
func (s *BadgerIndexStore) Acquire(ctx context.Context) (index.Session, error) {
	if err := s.slots.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire index session: %w", err)
	}
	return &session{store: s}, nil
}

// Healthcheck opens a read-only transaction.
func (s *BadgerIndexStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("badger closed: %w", index.ErrUnavailable)
	}
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

// Close flushes and closes the database.
func (s *BadgerIndexStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
