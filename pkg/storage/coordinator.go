// Package storage implements the storage coordinator: the layer that keeps
// the content store and the entry index consistent.
//
// Control flow for a put:
//
//	validate name -> acquire index session -> quota admission
//	    -> content.Write -> index.Insert -> release session
//
// Reads resolve the logical name through the index, then go to the content
// store. Removal deletes the blob first and the index entry only after.
//
// The two stores are independent, so two windows of inconsistency exist and
// are accepted rather than hidden:
//
//   - Orphaned blob: the write succeeded but the insert failed.
//   - Stale entry: the blob was already gone when removal ran.
//
// Both are logged as "reconcile required" and repaired by pkg/reconcile.
//
// The Coordinator holds no locks. It never retries, except for regenerating
// an entry id that collided with an existing one.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/quota"
	"github.com/marmos91/binder/pkg/store/content"
	"github.com/marmos91/binder/pkg/store/index"
)

// DefaultMaxIDAttempts bounds id regeneration on ErrDuplicateID.
const DefaultMaxIDAttempts = 5

// Config wires the Coordinator to its collaborators.
type Config struct {
	// Content holds file bytes. Required.
	Content content.Store

	// Index maps ids and names. Required.
	Index index.Store

	// Policy is the container limit.
	Policy quota.Policy

	// Generator produces entry ids. Default: index.RandomGenerator.
	Generator index.Generator

	// Metrics is optional.
	Metrics Metrics

	// MaxIDAttempts bounds id regeneration. Default: DefaultMaxIDAttempts.
	MaxIDAttempts int
}

// Coordinator exposes put/get/list/remove over a content store and an entry
// index.
//
// Thread Safety:
// Safe for concurrent use. Each call acquires its own index session.
type Coordinator struct {
	content       content.Store
	index         index.Store
	policy        quota.Policy
	generator     index.Generator
	metrics       Metrics
	maxIDAttempts int
}

// PutResult describes a stored file.
type PutResult struct {
	// Entry is the index record created for the upload.
	Entry index.Entry

	// Location is the content store locator of the blob.
	Location string

	// Written is the number of bytes appended.
	Written int64
}

// Usage is a snapshot of container occupancy.
type Usage struct {
	UsedBytes  uint64 `json:"used_bytes"`
	LimitBytes uint64 `json:"limit_bytes"`
}

// New creates a Coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Content == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("entry index is required")
	}

	generator := cfg.Generator
	if generator == nil {
		generator = index.RandomGenerator{}
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	attempts := cfg.MaxIDAttempts
	if attempts <= 0 {
		attempts = DefaultMaxIDAttempts
	}

	return &Coordinator{
		content:       cfg.Content,
		index:         cfg.Index,
		policy:        cfg.Policy,
		generator:     generator,
		metrics:       metrics,
		maxIDAttempts: attempts,
	}, nil
}

// Content returns the underlying content store.
func (c *Coordinator) Content() content.Store {
	return c.content
}

// Index returns the underlying entry index.
func (c *Coordinator) Index() index.Store {
	return c.index
}

// Policy returns the quota policy.
func (c *Coordinator) Policy() quota.Policy {
	return c.policy
}

// PutFile stores size bytes read from body under name.
//
// A name that already exists is appended to, and the insert that follows
// fails with KindIndex wrapping index.ErrDuplicatePath. The blob keeps the
// appended bytes.
//
// Parameters:
//   - ctx: Context for cancellation
//   - name: Flat logical file name
//   - size: Declared payload size, used for admission and to bound the read
//   - body: Payload
//
// Returns:
//   - *PutResult: The new entry and its location
//   - error: *Error with KindInvalidName, KindPoolExhausted, KindQuotaExceeded,
//     KindIO or KindIndex
func (c *Coordinator) PutFile(ctx context.Context, name string, size uint64, body io.Reader) (result *PutResult, err error) {
	const op = "put"
	start := time.Now()
	defer func() { c.metrics.ObserveOperation(op, time.Since(start), err) }()

	// ========================================================================
	// Step 1: Validate the name
	// ========================================================================

	if err := ValidateName(name); err != nil {
		return nil, newError(KindInvalidName, op, name, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, newError(KindIO, op, name, err)
	}

	// ========================================================================
	// Step 2: Acquire an index session
	// ========================================================================

	sess, err := c.acquire(ctx, op, name)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	// ========================================================================
	// Step 3: Quota admission
	// ========================================================================
	// Advisory only: nothing is reserved, so concurrent puts can overshoot.

	used := c.content.TotalSize(ctx)
	decision := c.policy.Admit(used, size)
	c.metrics.SetUsage(used, c.policy.LimitBytes)
	if !decision.Admitted {
		c.metrics.RecordQuotaRejection()
		return nil, newError(KindQuotaExceeded, op, name,
			fmt.Errorf("%w: used %d + incoming %d > limit %d", ErrQuotaExceeded, used, size, decision.Limit))
	}

	// ========================================================================
	// Step 4: Write the blob
	// ========================================================================

	limit := int64(math.MaxInt64)
	if size < math.MaxInt64 {
		limit = int64(size)
	}

	written, err := c.content.Write(ctx, name, io.LimitReader(body, limit))
	if err != nil {
		return nil, newError(KindIO, op, name, err)
	}
	c.metrics.RecordBytes(op, written)

	// ========================================================================
	// Step 5: Record the entry
	// ========================================================================

	entry, err := c.insert(ctx, sess, name)
	if err != nil {
		c.metrics.RecordInconsistency("orphaned_blob")
		logger.Error("Index insert failed after writing %q (%d bytes), reconcile required: %v", name, written, err)
		return nil, newError(KindIndex, op, name, err)
	}

	return &PutResult{
		Entry:    *entry,
		Location: c.content.Locate(entry.Path),
		Written:  written,
	}, nil
}

// insert adds an entry for name, regenerating the id while it collides.
func (c *Coordinator) insert(ctx context.Context, sess index.Session, name string) (*index.Entry, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxIDAttempts; attempt++ {
		id, err := c.generator.NewID()
		if err != nil {
			return nil, err
		}

		entry := index.Entry{ID: id, Path: name}
		err = sess.Insert(ctx, entry)
		if err == nil {
			return &entry, nil
		}
		if !errors.Is(err, index.ErrDuplicateID) {
			return nil, err
		}

		logger.Debug("Entry id %d already taken (attempt %d/%d)", id, attempt, c.maxIDAttempts)
		lastErr = err
	}

	return nil, fmt.Errorf("no free id after %d attempts: %w", c.maxIDAttempts, lastErr)
}

// GetFile resolves name to the locator of its blob. The blob itself is not
// checked; a stale entry resolves normally.
func (c *Coordinator) GetFile(ctx context.Context, name string) (loc string, err error) {
	const op = "get"
	start := time.Now()
	defer func() { c.metrics.ObserveOperation(op, time.Since(start), err) }()

	entry, err := c.resolve(ctx, op, name)
	if err != nil {
		return "", err
	}
	return c.content.Locate(entry.Path), nil
}

// OpenFile resolves name and opens its blob for streaming. The caller must
// close the reader.
//
// A live entry whose blob is missing is reported as KindIO, not
// KindNotFound: the index says the file exists.
func (c *Coordinator) OpenFile(ctx context.Context, name string) (rc io.ReadCloser, entry *index.Entry, err error) {
	const op = "open"
	start := time.Now()
	defer func() { c.metrics.ObserveOperation(op, time.Since(start), err) }()

	entry, err = c.resolve(ctx, op, name)
	if err != nil {
		return nil, nil, err
	}

	rc, err = c.content.Read(ctx, entry.Path)
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			c.metrics.RecordInconsistency("stale_entry")
			logger.Warn("Entry %d for %q has no blob, reconcile required", entry.ID, name)
		}
		return nil, nil, newError(KindIO, op, name, err)
	}

	return rc, entry, nil
}

func (c *Coordinator) resolve(ctx context.Context, op, name string) (*index.Entry, error) {
	sess, err := c.acquire(ctx, op, name)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	entry, err := sess.FindByPath(ctx, name)
	if err != nil {
		return nil, newError(KindIndex, op, name, err)
	}
	if entry == nil {
		return nil, newError(KindNotFound, op, name, ErrNotFound)
	}
	return entry, nil
}

// ListFiles returns one locator per live entry, ordered by name.
//
// Only a failure to acquire a session is reported. A failed scan is logged
// and yields an empty list, indistinguishable from an empty container.
func (c *Coordinator) ListFiles(ctx context.Context) (locs []string, err error) {
	const op = "list"
	start := time.Now()
	defer func() { c.metrics.ObserveOperation(op, time.Since(start), err) }()

	sess, err := c.acquire(ctx, op, "")
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	entries, scanErr := sess.ListAll(ctx)
	if scanErr != nil {
		logger.Error("Index scan failed, returning empty listing: %v", scanErr)
		return []string{}, nil
	}

	locs = make([]string, 0, len(entries))
	for _, e := range entries {
		locs = append(locs, c.content.Locate(e.Path))
	}
	return locs, nil
}

// RemoveFile deletes the blob for name and then its entry.
//
// Removal is ordered so a failure never leaves an entry without its blob by
// our own doing:
//
//   - Blob already missing: success, the index is left untouched. If an entry
//     exists it is now stale and is logged for reconciliation.
//   - Blob removal fails otherwise: KindIO, index untouched.
//   - Entry removal fails: KindIndex. The entry is stale.
func (c *Coordinator) RemoveFile(ctx context.Context, name string) (err error) {
	const op = "remove"
	start := time.Now()
	defer func() { c.metrics.ObserveOperation(op, time.Since(start), err) }()

	if err := ValidateName(name); err != nil {
		return newError(KindInvalidName, op, name, err)
	}

	sess, err := c.acquire(ctx, op, name)
	if err != nil {
		return err
	}
	defer sess.Release()

	// ========================================================================
	// Step 1: Remove the blob
	// ========================================================================

	if err := c.content.Remove(ctx, name); err != nil {
		if !errors.Is(err, content.ErrContentNotFound) {
			return newError(KindIO, op, name, err)
		}

		entry, findErr := sess.FindByPath(ctx, name)
		if findErr == nil && entry != nil {
			c.metrics.RecordInconsistency("stale_entry")
			logger.Warn("Remove of %q found entry %d without a blob, reconcile required", name, entry.ID)
		}
		return nil
	}

	// ========================================================================
	// Step 2: Remove the entry
	// ========================================================================

	if err := sess.RemoveByPath(ctx, name); err != nil {
		c.metrics.RecordInconsistency("stale_entry")
		logger.Error("Blob %q removed but entry removal failed, reconcile required: %v", name, err)
		return newError(KindIndex, op, name, err)
	}

	return nil
}

// Usage returns current container usage and the configured limit.
func (c *Coordinator) Usage(ctx context.Context) Usage {
	used := c.content.TotalSize(ctx)
	c.metrics.SetUsage(used, c.policy.LimitBytes)
	return Usage{UsedBytes: used, LimitBytes: c.policy.LimitBytes}
}

// Healthcheck checks the entry index.
func (c *Coordinator) Healthcheck(ctx context.Context) error {
	return c.index.Healthcheck(ctx)
}

// Close closes the index and the content store.
func (c *Coordinator) Close() error {
	return errors.Join(c.index.Close(), c.content.Close())
}

func (c *Coordinator) acquire(ctx context.Context, op, name string) (index.Session, error) {
	sess, err := c.index.Acquire(ctx)
	if err != nil {
		if errors.Is(err, index.ErrPoolExhausted) {
			return nil, newError(KindPoolExhausted, op, name, err)
		}
		return nil, newError(KindIndex, op, name, err)
	}
	return sess, nil
}
