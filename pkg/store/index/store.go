// Package index defines binder's entry index: the persistent mapping from a
// numeric id to the logical path of each stored file.
//
// The index is transactional per call. It never touches file bytes; the
// storage coordinator (pkg/storage) keeps it consistent with the content
// store.
//
// Access goes through a bounded pool of sessions. Handlers acquire one
// session per request and release it when done:
//
//	sess, err := store.Acquire(ctx)
//	if err != nil {
//	    return err // ErrPoolExhausted after the acquire timeout
//	}
//	defer sess.Release()
package index

import (
	"context"
	"time"
)

// DefaultAcquireTimeout bounds how long Acquire waits for a free session.
const DefaultAcquireTimeout = 30 * time.Second

// Entry is one row of the index.
type Entry struct {
	// ID is a 16-digit random identifier. Unique across the index.
	ID int64 `json:"id"`

	// Path is the logical file path. Unique across the index.
	Path string `json:"path"`
}

// Store is a pooled entry index backend.
type Store interface {
	// Acquire returns a session from the pool, waiting up to the configured
	// acquire timeout. Returns ErrPoolExhausted when the wait expires, or the
	// context error if ctx is done first.
	Acquire(ctx context.Context) (Session, error)

	// Healthcheck verifies the backend can serve a trivial query.
	Healthcheck(ctx context.Context) error

	// Close releases the pool. Sessions must be released first.
	Close() error
}

// Session is a single borrowed connection to the index.
//
// A session is not safe for concurrent use; callers own it until Release.
type Session interface {
	// Find returns the entry with the given id, or (nil, nil) if none.
	Find(ctx context.Context, id int64) (*Entry, error)

	// FindByPath returns the entry with the given path, or (nil, nil) if none.
	FindByPath(ctx context.Context, path string) (*Entry, error)

	// ListAll returns every entry, ordered by path.
	ListAll(ctx context.Context) ([]Entry, error)

	// Insert adds an entry. Returns ErrDuplicatePath or ErrDuplicateID on a
	// uniqueness violation. A failed insert leaves the index unchanged.
	Insert(ctx context.Context, e Entry) error

	// RemoveByPath deletes the entry with the given path. Removing an absent
	// path is a no-op.
	RemoveByPath(ctx context.Context, path string) error

	// Release returns the session to the pool. Safe to call more than once.
	Release()
}
