package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/binder/pkg/store/index"
	indextesting "github.com/marmos91/binder/pkg/store/index/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, dir string, poolSize int) *BadgerIndexStore {
	t.Helper()
	store, err := NewBadgerIndexStore(context.Background(), Config{
		DBPath:           dir,
		PoolSize:         poolSize,
		AcquireTimeout:   200 * time.Millisecond,
		BlockCacheSizeMB: 8,
	})
	require.NoError(t, err)
	return store
}

func TestBadgerIndexStore(t *testing.T) {
	suite := &indextesting.StoreTestSuite{
		NewStore: func(t *testing.T, poolSize int) index.Store {
			return newTestStore(t, t.TempDir(), poolSize)
		},
	}
	suite.Run(t)
}

func TestBadgerIndexStore_Reopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	ctx := context.Background()

	store := newTestStore(t, dir, 1)
	sess, err := store.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Insert(ctx, index.Entry{ID: 1234567890123456, Path: "kept.txt"}))
	sess.Release()
	require.NoError(t, store.Close())

	reopened := newTestStore(t, dir, 1)
	defer func() { _ = reopened.Close() }()

	sess, err = reopened.Acquire(ctx)
	require.NoError(t, err)
	defer sess.Release()

	e, err := sess.Find(ctx, 1234567890123456)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "kept.txt", e.Path)
}

func TestBadgerIndexStore_HealthcheckAfterClose(t *testing.T) {
	store := newTestStore(t, t.TempDir(), 1)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Healthcheck(context.Background()), index.ErrUnavailable)
}
