package testing

import (
	"context"
	"sync"
	"testing"

	"github.com/marmos91/binder/pkg/store/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunPoolTests executes session pool tests.
func (suite *StoreTestSuite) RunPoolTests(t *testing.T) {
	t.Run("Exhausted", suite.testPoolExhausted)
	t.Run("ReleaseFreesSlot", suite.testReleaseFreesSlot)
	t.Run("ReleaseTwice", suite.testReleaseTwice)
	t.Run("UseAfterRelease", suite.testUseAfterRelease)
	t.Run("ConcurrentInserts", suite.testConcurrentInserts)
}

func (suite *StoreTestSuite) testPoolExhausted(t *testing.T) {
	store := suite.newStore(t, 1)

	held := mustAcquire(t, store)
	defer held.Release()

	_, err := store.Acquire(testContext())
	assert.ErrorIs(t, err, index.ErrPoolExhausted)
}

func (suite *StoreTestSuite) testReleaseFreesSlot(t *testing.T) {
	store := suite.newStore(t, 1)

	first := mustAcquire(t, store)
	first.Release()

	second := mustAcquire(t, store)
	second.Release()
}

func (suite *StoreTestSuite) testReleaseTwice(t *testing.T) {
	store := suite.newStore(t, 1)

	sess := mustAcquire(t, store)
	sess.Release()
	sess.Release()

	// A double release must not free a slot that was never taken.
	a := mustAcquire(t, store)
	defer a.Release()
	_, err := store.Acquire(testContext())
	assert.ErrorIs(t, err, index.ErrPoolExhausted)
}

func (suite *StoreTestSuite) testUseAfterRelease(t *testing.T) {
	store := suite.newStore(t, 1)

	sess := mustAcquire(t, store)
	sess.Release()

	_, err := sess.FindByPath(testContext(), "x")
	assert.ErrorIs(t, err, index.ErrReleased)
}

func (suite *StoreTestSuite) testConcurrentInserts(t *testing.T) {
	store := suite.newStore(t, 4)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := store.Acquire(context.Background())
			if err != nil {
				errs <- err
				return
			}
			defer sess.Release()
			errs <- sess.Insert(context.Background(), index.Entry{
				ID:   index.MinID + int64(i),
				Path: "file-" + string(rune('a'+i)),
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	sess := mustAcquire(t, store)
	defer sess.Release()
	entries, err := sess.ListAll(testContext())
	require.NoError(t, err)
	assert.Len(t, entries, workers)
}
