// Package testing provides a reusable contract suite for index.Store
// implementations.
package testing

import (
	"context"
	"testing"

	"github.com/marmos91/binder/pkg/store/index"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite tests the index.Store contract against any backend.
//
// Usage:
//
//	func TestMyIndex(t *testing.T) {
//	    suite := &indextesting.StoreTestSuite{
//	        NewStore: func(t *testing.T, poolSize int) index.Store {
//	            return myindex.New(t.TempDir(), poolSize)
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store with the given pool size and an
	// acquire timeout short enough for tests (well under a second). The
	// suite closes the store when the test ends.
	NewStore func(t *testing.T, poolSize int) index.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Entries", suite.RunEntryTests)
	t.Run("Pool", suite.RunPoolTests)
}

func testContext() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) newStore(t *testing.T, poolSize int) index.Store {
	t.Helper()
	store := suite.NewStore(t, poolSize)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustAcquire(t *testing.T, store index.Store) index.Session {
	t.Helper()
	sess, err := store.Acquire(testContext())
	require.NoError(t, err)
	return sess
}

func mustInsert(t *testing.T, sess index.Session, id int64, path string) {
	t.Helper()
	require.NoError(t, sess.Insert(testContext(), index.Entry{ID: id, Path: path}))
}
