// Package reconcile repairs the gaps the storage coordinator leaves between
// the content store and the entry index.
//
// Two kinds of drift are detected:
//   - Stale entry: an index entry whose blob is gone. Repair removes the entry.
//   - Orphaned blob: a blob with no index entry. Depending on the configured
//     policy the blob is only reported, deleted, or adopted under a fresh id.
//
// Drift is produced by crashes and partial failures in put/remove, and by
// appends to an existing name, which leave extra bytes behind the original
// entry but no new entry.
//
// A put writes its blob before inserting the entry, so every upload in flight
// briefly looks like an orphan. Blobs written within the grace period are
// therefore never treated as orphaned.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/store/content"
	"github.com/marmos91/binder/pkg/store/index"
)

// OrphanPolicy selects what a run does with orphaned blobs.
type OrphanPolicy string

const (
	// OrphanReport logs orphaned blobs and leaves them in place.
	OrphanReport OrphanPolicy = "report"

	// OrphanDelete removes orphaned blobs from the content store.
	OrphanDelete OrphanPolicy = "delete"

	// OrphanAdopt inserts an index entry for each orphaned blob.
	OrphanAdopt OrphanPolicy = "adopt"
)

// ErrRunning is returned by RunNow while another run is in progress.
var ErrRunning = errors.New("reconcile already running")

// maxListed bounds how many names a dry run prints per category.
const maxListed = 10

// DefaultGracePeriod is how long a blob must go unwritten before it can be
// treated as orphaned.
const DefaultGracePeriod = 15 * time.Minute

// Config contains configuration for the reconciler.
type Config struct {
	// Enabled controls whether periodic runs are scheduled. RunNow works
	// regardless.
	Enabled bool

	// Interval between periodic runs (default: 1h)
	Interval time.Duration

	// Timeout bounds a single periodic run (default: 10m)
	Timeout time.Duration

	// DryRun reports drift without repairing anything.
	DryRun bool

	// Orphans is the orphaned blob policy (default: delete)
	Orphans OrphanPolicy

	// GracePeriod is the minimum age of an orphaned blob's last write
	// (default: 15m)
	GracePeriod time.Duration
}

// Metrics observes reconcile runs. Optional.
type Metrics interface {
	ObserveRun(stats *Stats, err error)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRun(*Stats, error) {}

// Reconciler compares the entry index with the content store and repairs
// drift between them.
//
// Thread Safety: Safe for concurrent use. At most one run executes at a time.
type Reconciler struct {
	content   content.Store
	index     index.Store
	generator index.Generator
	config    Config
	metrics   Metrics
	now       func() time.Time

	running  sync.Mutex
	stopOnce sync.Once
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a reconciler. It is not started.
//
// Parameters:
//   - cs: Content store to scan
//   - is: Entry index to scan
//   - config: Reconcile configuration
//   - metrics: Optional metrics sink (nil disables)
func New(cs content.Store, is index.Store, config Config, metrics Metrics) (*Reconciler, error) {
	if cs == nil || is == nil {
		return nil, fmt.Errorf("content store and entry index are required")
	}

	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Minute
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultGracePeriod
	}
	switch config.Orphans {
	case "":
		config.Orphans = OrphanDelete
	case OrphanReport, OrphanDelete, OrphanAdopt:
	default:
		return nil, fmt.Errorf("unknown orphan policy %q", config.Orphans)
	}

	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &Reconciler{
		content:   cs,
		index:     is,
		generator: index.RandomGenerator{},
		config:    config,
		metrics:   metrics,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// SetGenerator replaces the id generator used when adopting orphans.
func (r *Reconciler) SetGenerator(g index.Generator) {
	r.generator = g
}

// Start begins periodic runs. A no-op when the reconciler is disabled.
func (r *Reconciler) Start() {
	if !r.config.Enabled {
		logger.Info("Reconciler disabled")
		return
	}

	logger.Info("Starting reconciler: interval=%s orphans=%s grace=%s dry_run=%v",
		r.config.Interval, r.config.Orphans, r.config.GracePeriod, r.config.DryRun)

	r.started = true
	go r.worker()
}

// Stop ends periodic runs and waits for an in-progress run to finish.
func (r *Reconciler) Stop(ctx context.Context) error {
	if !r.started {
		return nil
	}

	r.stopOnce.Do(func() { close(r.stopCh) })

	select {
	case <-r.doneCh:
		logger.Info("Reconciler stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Reconciler shutdown timeout")
		return ctx.Err()
	}
}

// RunNow performs a run immediately and blocks until it completes.
//
// Returns ErrRunning without doing anything if a run is already in progress.
func (r *Reconciler) RunNow(ctx context.Context) (*Stats, error) {
	if !r.running.TryLock() {
		return nil, ErrRunning
	}
	defer r.running.Unlock()

	stats, err := r.run(ctx)
	r.metrics.ObserveRun(stats, err)
	return stats, err
}

func (r *Reconciler) worker() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.config.Timeout)
			stats, err := r.RunNow(ctx)
			cancel()

			switch {
			case errors.Is(err, ErrRunning):
				logger.Debug("Skipping periodic reconcile, a run is in progress")
			case err != nil:
				logger.Error("Reconcile failed: %v", err)
			default:
				logger.Info("Reconcile completed: %s", stats.Summary())
			}

		case <-r.stopCh:
			return
		}
	}
}

// run performs a single pass:
//  1. List index entries and blobs
//  2. Stale = entries without a blob, orphaned = settled blobs without an entry
//  3. Repair both per config, re-checking each candidate first
func (r *Reconciler) run(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
		DryRun:    r.config.DryRun,
	}
	defer func() { stats.EndTime = time.Now() }()

	sess, err := r.index.Acquire(ctx)
	if err != nil {
		return stats, fmt.Errorf("acquire index session: %w", err)
	}
	defer sess.Release()

	// ========================================================================
	// Step 1: Scan both stores
	// ========================================================================

	entries, err := sess.ListAll(ctx)
	if err != nil {
		return stats, fmt.Errorf("list entries: %w", err)
	}
	blobs, err := r.content.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list blobs: %w", err)
	}
	stats.Entries = len(entries)
	stats.Blobs = len(blobs)

	// ========================================================================
	// Step 2: Diff
	// ========================================================================

	blobSet := make(map[string]struct{}, len(blobs))
	for _, b := range blobs {
		blobSet[b] = struct{}{}
	}
	entrySet := make(map[string]struct{}, len(entries))

	var stale []index.Entry
	for _, e := range entries {
		entrySet[e.Path] = struct{}{}
		if _, ok := blobSet[e.Path]; !ok {
			stale = append(stale, e)
		}
	}

	var orphaned []string
	for _, b := range blobs {
		if _, ok := entrySet[b]; ok {
			continue
		}
		settled, err := r.settled(ctx, b)
		switch {
		case errors.Is(err, content.ErrContentNotFound):
			// Removed since the scan
		case err != nil:
			logger.Warn("Reconcile %s: cannot stat blob %q: %v", stats.RunID, b, err)
			stats.Failed++
		case !settled:
			stats.Deferred++
		default:
			orphaned = append(orphaned, b)
		}
	}

	stats.Stale = len(stale)
	stats.Orphaned = len(orphaned)

	logger.Info("Reconcile %s: %d entries, %d blobs, %d stale, %d orphaned, %d within grace period",
		stats.RunID, stats.Entries, stats.Blobs, stats.Stale, stats.Orphaned, stats.Deferred)

	if r.config.DryRun {
		r.report(stats.RunID, stale, orphaned)
		return stats, nil
	}

	// ========================================================================
	// Step 3: Repair
	// ========================================================================

	for _, e := range stale {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		r.repairStale(ctx, sess, e, stats)
	}

	for _, name := range orphaned {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		r.repairOrphan(ctx, sess, name, stats)
	}

	logger.Info("Reconcile %s: %s", stats.RunID, stats.Summary())
	return stats, nil
}

func (r *Reconciler) repairStale(ctx context.Context, sess index.Session, e index.Entry, stats *Stats) {
	// A put may have written the blob since the scan.
	ok, err := r.content.Exists(ctx, e.Path)
	if err != nil {
		logger.Warn("Reconcile %s: cannot check blob %q: %v", stats.RunID, e.Path, err)
		stats.Failed++
		return
	}
	if ok {
		return
	}

	if err := sess.RemoveByPath(ctx, e.Path); err != nil {
		logger.Warn("Reconcile %s: cannot remove stale entry %d (%q): %v", stats.RunID, e.ID, e.Path, err)
		stats.Failed++
		return
	}
	logger.Debug("Reconcile %s: removed stale entry %d (%q)", stats.RunID, e.ID, e.Path)
	stats.Repaired++
}

func (r *Reconciler) repairOrphan(ctx context.Context, sess index.Session, name string, stats *Stats) {
	if r.config.Orphans == OrphanReport {
		logger.Warn("Reconcile %s: orphaned blob %q", stats.RunID, name)
		return
	}

	// A put may have inserted the entry since the scan.
	entry, err := sess.FindByPath(ctx, name)
	if err != nil {
		logger.Warn("Reconcile %s: cannot check entry for %q: %v", stats.RunID, name, err)
		stats.Failed++
		return
	}
	if entry != nil {
		return
	}

	// Or appended to the blob, starting a new put of the same name.
	settled, err := r.settled(ctx, name)
	if errors.Is(err, content.ErrContentNotFound) {
		return
	}
	if err != nil {
		logger.Warn("Reconcile %s: cannot stat blob %q: %v", stats.RunID, name, err)
		stats.Failed++
		return
	}
	if !settled {
		stats.Deferred++
		return
	}

	switch r.config.Orphans {
	case OrphanDelete:
		err = r.content.Remove(ctx, name)
		if errors.Is(err, content.ErrContentNotFound) {
			err = nil
		}
	case OrphanAdopt:
		err = r.adopt(ctx, sess, name)
	}

	if err != nil {
		logger.Warn("Reconcile %s: cannot %s orphaned blob %q: %v", stats.RunID, r.config.Orphans, name, err)
		stats.Failed++
		return
	}
	logger.Debug("Reconcile %s: %s orphaned blob %q", stats.RunID, r.config.Orphans, name)
	stats.Repaired++
}

// settled reports whether the blob at name was last written at least one
// grace period ago.
func (r *Reconciler) settled(ctx context.Context, name string) (bool, error) {
	info, err := r.content.Stat(ctx, name)
	if err != nil {
		return false, err
	}
	return r.now().Sub(info.ModTime) >= r.config.GracePeriod, nil
}

func (r *Reconciler) adopt(ctx context.Context, sess index.Session, name string) error {
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		id, err := r.generator.NewID()
		if err != nil {
			return err
		}
		err = sess.Insert(ctx, index.Entry{ID: id, Path: name})
		if !errors.Is(err, index.ErrDuplicateID) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (r *Reconciler) report(runID string, stale []index.Entry, orphaned []string) {
	for i, e := range stale {
		if i == maxListed {
			logger.Info("Reconcile %s: ... and %d more stale entries", runID, len(stale)-maxListed)
			break
		}
		logger.Info("Reconcile %s: DRY RUN would remove stale entry %d (%q)", runID, e.ID, e.Path)
	}
	for i, name := range orphaned {
		if i == maxListed {
			logger.Info("Reconcile %s: ... and %d more orphaned blobs", runID, len(orphaned)-maxListed)
			break
		}
		logger.Info("Reconcile %s: DRY RUN would %s orphaned blob %q", runID, r.config.Orphans, name)
	}
}

// Stats describes one reconcile run.
type Stats struct {
	RunID     string    `json:"run_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	DryRun    bool      `json:"dry_run"`
	Entries   int       `json:"entries"`  // index entries scanned
	Blobs     int       `json:"blobs"`    // blobs scanned
	Stale     int       `json:"stale"`    // entries without a blob
	Orphaned  int       `json:"orphaned"` // settled blobs without an entry
	Deferred  int       `json:"deferred"` // unindexed blobs inside the grace period
	Repaired  int       `json:"repaired"`
	Failed    int       `json:"failed"`
}

// Duration returns the run duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a one-line human-readable summary.
func (s *Stats) Summary() string {
	return fmt.Sprintf("entries=%d blobs=%d stale=%d orphaned=%d deferred=%d repaired=%d failed=%d dry_run=%v duration=%s",
		s.Entries, s.Blobs, s.Stale, s.Orphaned, s.Deferred, s.Repaired, s.Failed, s.DryRun, s.Duration())
}
