package reconcile

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/marmos91/binder/pkg/quota"
	"github.com/marmos91/binder/pkg/storage"
	"github.com/marmos91/binder/pkg/store/content"
	contentmemory "github.com/marmos91/binder/pkg/store/content/memory"
	"github.com/marmos91/binder/pkg/store/index"
	indexmemory "github.com/marmos91/binder/pkg/store/index/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stores struct {
	content content.Store
	index   index.Store
}

// newStores returns stores holding:
//   - "a": entry and blob
//   - "stale": entry only
//   - "orphan": blob only
func newStores(t *testing.T) *stores {
	t.Helper()
	ctx := context.Background()

	cs, err := contentmemory.NewMemoryContentStore(ctx, "")
	require.NoError(t, err)
	is, err := indexmemory.NewMemoryIndexStore(ctx, indexmemory.Config{PoolSize: 2, AcquireTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	for _, name := range []string{"a", "orphan"} {
		_, err := cs.Write(ctx, name, bytes.NewReader([]byte(name)))
		require.NoError(t, err)
	}

	sess, err := is.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()
	require.NoError(t, sess.Insert(ctx, index.Entry{ID: index.MinID, Path: "a"}))
	require.NoError(t, sess.Insert(ctx, index.Entry{ID: index.MinID + 1, Path: "stale"}))

	return &stores{content: cs, index: is}
}

func (s *stores) entries(t *testing.T) []index.Entry {
	t.Helper()
	sess, err := s.index.Acquire(context.Background())
	require.NoError(t, err)
	defer sess.Release()
	entries, err := sess.ListAll(context.Background())
	require.NoError(t, err)
	return entries
}

func (s *stores) blobs(t *testing.T) []string {
	t.Helper()
	names, err := s.content.List(context.Background())
	require.NoError(t, err)
	return names
}

// aged moves the reconciler's clock past the grace period of every blob
// written so far.
func aged(r *Reconciler) *Reconciler {
	r.now = func() time.Time { return time.Now().Add(DefaultGracePeriod + time.Minute) }
	return r
}

type recordingMetrics struct {
	runs []*Stats
}

func (m *recordingMetrics) ObserveRun(stats *Stats, _ error) {
	m.runs = append(m.runs, stats)
}

func TestNew_Defaults(t *testing.T) {
	s := newStores(t)

	r, err := New(s.content, s.index, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, OrphanDelete, r.config.Orphans)
	assert.Equal(t, time.Hour, r.config.Interval)
	assert.Equal(t, DefaultGracePeriod, r.config.GracePeriod)

	_, err = New(s.content, s.index, Config{Orphans: "shred"}, nil)
	assert.Error(t, err)

	_, err = New(nil, s.index, Config{}, nil)
	assert.Error(t, err)
}

func TestRunNow_DryRunChangesNothing(t *testing.T) {
	s := newStores(t)
	r, err := New(s.content, s.index, Config{DryRun: true, Orphans: OrphanDelete}, nil)
	require.NoError(t, err)

	stats, err := aged(r).RunNow(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 2, stats.Blobs)
	assert.Equal(t, 1, stats.Stale)
	assert.Equal(t, 1, stats.Orphaned)
	assert.Zero(t, stats.Repaired)
	assert.Len(t, s.entries(t), 2)
	assert.Equal(t, []string{"a", "orphan"}, s.blobs(t))
}

func TestRunNow_ReportKeepsOrphans(t *testing.T) {
	s := newStores(t)
	r, err := New(s.content, s.index, Config{Orphans: OrphanReport}, nil)
	require.NoError(t, err)

	stats, err := aged(r).RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Repaired, "only the stale entry is repaired")
	assert.Equal(t, []index.Entry{{ID: index.MinID, Path: "a"}}, s.entries(t))
	assert.Equal(t, []string{"a", "orphan"}, s.blobs(t))
}

func TestRunNow_DeleteOrphans(t *testing.T) {
	s := newStores(t)
	m := &recordingMetrics{}
	r, err := New(s.content, s.index, Config{Orphans: OrphanDelete}, m)
	require.NoError(t, err)

	stats, err := aged(r).RunNow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Repaired)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, []string{"a"}, s.blobs(t))
	assert.Equal(t, []index.Entry{{ID: index.MinID, Path: "a"}}, s.entries(t))
	require.Len(t, m.runs, 1)
	assert.Same(t, stats, m.runs[0])
}

func TestRunNow_AdoptOrphans(t *testing.T) {
	s := newStores(t)
	r, err := New(s.content, s.index, Config{Orphans: OrphanAdopt}, nil)
	require.NoError(t, err)

	// The first candidate collides with "a".
	ids := []int64{index.MinID, index.MinID + 7}
	r.SetGenerator(index.GeneratorFunc(func() (int64, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}))

	stats, err := aged(r).RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Repaired)

	assert.Equal(t, []index.Entry{
		{ID: index.MinID, Path: "a"},
		{ID: index.MinID + 7, Path: "orphan"},
	}, s.entries(t))
}

func TestRunNow_ConvergedStoresAreClean(t *testing.T) {
	s := newStores(t)
	r, err := New(s.content, s.index, Config{Orphans: OrphanDelete}, nil)
	require.NoError(t, err)

	_, err = aged(r).RunNow(context.Background())
	require.NoError(t, err)

	stats, err := r.RunNow(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Stale)
	assert.Zero(t, stats.Orphaned)
	assert.Zero(t, stats.Repaired)
}

func TestRunNow_SparesRecentBlobs(t *testing.T) {
	s := newStores(t)
	r, err := New(s.content, s.index, Config{Orphans: OrphanDelete}, nil)
	require.NoError(t, err)

	stats, err := r.RunNow(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.Orphaned)
	assert.Equal(t, 1, stats.Deferred)
	assert.Equal(t, 1, stats.Repaired, "only the stale entry is repaired")
	assert.Equal(t, []string{"a", "orphan"}, s.blobs(t))
}

// reconcilingContent runs a reconcile pass right after each write, while the
// coordinator has not yet inserted the entry.
type reconcilingContent struct {
	content.Store
	r     *Reconciler
	stats *Stats
	err   error
}

func (c *reconcilingContent) Write(ctx context.Context, p string, src io.Reader) (int64, error) {
	n, err := c.Store.Write(ctx, p, src)
	if err == nil {
		c.stats, c.err = c.r.RunNow(ctx)
	}
	return n, err
}

func TestRunNow_KeepsUploadInFlight(t *testing.T) {
	ctx := context.Background()

	cs, err := contentmemory.NewMemoryContentStore(ctx, "")
	require.NoError(t, err)
	is, err := indexmemory.NewMemoryIndexStore(ctx, indexmemory.Config{PoolSize: 2, AcquireTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	r, err := New(cs, is, Config{Orphans: OrphanDelete}, nil)
	require.NoError(t, err)
	wrapped := &reconcilingContent{Store: cs, r: r}

	coord, err := storage.New(storage.Config{
		Content: wrapped,
		Index:   is,
		Policy:  quota.Policy{LimitBytes: 1 << 20},
	})
	require.NoError(t, err)

	_, err = coord.PutFile(ctx, "a.txt", 3, bytes.NewReader([]byte{1, 2, 3}))
	require.NoError(t, err)

	require.NoError(t, wrapped.err)
	require.NotNil(t, wrapped.stats)
	assert.Zero(t, wrapped.stats.Orphaned)
	assert.Equal(t, 1, wrapped.stats.Deferred)

	rc, _, err := coord.OpenFile(ctx, "a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestRunNow_RejectsConcurrentRun(t *testing.T) {
	s := newStores(t)
	r, err := New(s.content, s.index, Config{}, nil)
	require.NoError(t, err)

	r.running.Lock()
	_, err = r.RunNow(context.Background())
	r.running.Unlock()
	assert.ErrorIs(t, err, ErrRunning)
}

func TestRunNow_CancelledContext(t *testing.T) {
	s := newStores(t)
	r, err := New(s.content, s.index, Config{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.RunNow(ctx)
	assert.Error(t, err)
	assert.Len(t, s.entries(t), 2)
}

func TestStartStop(t *testing.T) {
	s := newStores(t)
	m := &recordingMetrics{}
	r, err := New(s.content, s.index, Config{Enabled: true, Interval: 10 * time.Millisecond}, m)
	require.NoError(t, err)

	aged(r).Start()
	assert.Eventually(t, func() bool {
		return len(s.entries(t)) == 1
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
	require.NoError(t, r.Stop(ctx))
}

func TestStopWithoutStart(t *testing.T) {
	s := newStores(t)
	r, err := New(s.content, s.index, Config{}, nil)
	require.NoError(t, err)
	assert.NoError(t, r.Stop(context.Background()))
}

func TestStatsSummary(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Stats{StartTime: start, EndTime: start.Add(2 * time.Second), Entries: 3, Blobs: 4, Orphaned: 1}
	assert.Equal(t, "entries=3 blobs=4 stale=0 orphaned=1 deferred=0 repaired=0 failed=0 dry_run=false duration=2s", s.Summary())
}
