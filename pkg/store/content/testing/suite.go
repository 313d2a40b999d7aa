// Package testing provides a reusable contract suite for content.Store
// implementations.
package testing

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/marmos91/binder/pkg/store/content"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite tests the content.Store contract, not implementation
// details, so the same suite runs against the filesystem, memory and S3
// backends.
//
// Usage:
//
//	func TestMyContentStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func() content.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func() content.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("WriteOperations", suite.RunWriteTests)
	t.Run("Statistics", suite.RunStatsTests)
}

func testContext() context.Context {
	return context.Background()
}

func mustWrite(t *testing.T, store content.Store, p string, data []byte) {
	t.Helper()
	n, err := store.Write(testContext(), p, bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
}

func mustRead(t *testing.T, store content.Store, p string) []byte {
	t.Helper()
	r, err := store.Read(testContext(), p)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
