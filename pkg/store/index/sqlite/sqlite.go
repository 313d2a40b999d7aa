// Package sqlite implements the entry index on SQLite.
//
// This is the default backend. Connections come from a zombiezen sqlitex
// pool; every connection gets the same pragmas (WAL, busy timeout) and the
// schema is migrated once when the store opens:
//
//	CREATE TABLE file_entry (
//	    id         INTEGER PRIMARY KEY,
//	    entry_path TEXT NOT NULL UNIQUE
//	);
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/store/index"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS file_entry (
	id         INTEGER PRIMARY KEY,
	entry_path TEXT NOT NULL UNIQUE
);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

// Config configures the SQLite index.
type Config struct {
	// Path is the database file. A "sqlite://" or "sqlite:" scheme prefix is
	// stripped so DATABASE_URL-style values work unchanged.
	Path string

	// PoolSize is the number of pooled connections. Default: 10.
	PoolSize int

	// AcquireTimeout bounds the wait for a free connection. Default: 30s.
	AcquireTimeout time.Duration
}

// SQLiteIndexStore implements index.Store.
type SQLiteIndexStore struct {
	pool           *sqlitex.Pool
	path           string
	acquireTimeout time.Duration
}

// NewSQLiteIndexStore opens the pool and migrates the schema.
//
// Parameters:
//   - ctx: Context for the initial migration
//   - cfg: Database path and pool settings
//
// Returns:
//   - *SQLiteIndexStore: Ready-to-use store
//   - error: If the database cannot be opened or migrated
func NewSQLiteIndexStore(ctx context.Context, cfg Config) (*SQLiteIndexStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := NormalizePath(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = index.DefaultAcquireTimeout
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite index at %s: %w: %w", path, index.ErrUnavailable, err)
	}

	store := &SQLiteIndexStore{
		pool:           pool,
		path:           path,
		acquireTimeout: timeout,
	}

	if err := store.Migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	logger.Debug("SQLite index opened: path=%s pool_size=%d", path, poolSize)
	return store, nil
}

// NormalizePath strips a sqlite URL scheme from p.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	for _, prefix := range []string{"sqlite://", "sqlite:"} {
		if strings.HasPrefix(p, prefix) {
			return strings.TrimPrefix(p, prefix)
		}
	}
	return p
}

func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// Migrate creates the file_entry table if it does not exist.
func (s *SQLiteIndexStore) Migrate(ctx context.Context) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("failed to migrate index schema: %w", err)
	}
	return nil
}

// Acquire borrows a pooled connection.
func (s *SQLiteIndexStore) Acquire(ctx context.Context) (index.Session, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	return &session{store: s, conn: conn}, nil
}

// take borrows a connection, mapping an expired wait to ErrPoolExhausted.
func (s *SQLiteIndexStore) take(ctx context.Context) (*sqlite.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	conn, err := s.pool.Take(waitCtx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire index session after %s: %w", s.acquireTimeout, index.ErrPoolExhausted)
		}
		return nil, fmt.Errorf("acquire index session: %w: %w", index.ErrUnavailable, err)
	}

	// Take binds the interrupt to waitCtx, which is about to be cancelled.
	conn.SetInterrupt(nil)
	return conn, nil
}

// Healthcheck runs SELECT 1 on a pooled connection.
func (s *SQLiteIndexStore) Healthcheck(ctx context.Context) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	conn.SetInterrupt(ctx.Done())
	defer conn.SetInterrupt(nil)

	if err := sqlitex.ExecuteTransient(conn, "SELECT 1", nil); err != nil {
		return fmt.Errorf("index healthcheck: %w: %w", index.ErrUnavailable, err)
	}
	return nil
}

// Close closes every connection. It blocks until borrowed sessions are
// released.
func (s *SQLiteIndexStore) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("failed to close sqlite index %s: %w", s.path, err)
	}
	return nil
}
