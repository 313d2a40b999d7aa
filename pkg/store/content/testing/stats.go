package testing

import (
	"testing"
	"time"

	"github.com/marmos91/binder/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStatsTests executes TotalSize and Stat tests.
func (suite *StoreTestSuite) RunStatsTests(t *testing.T) {
	t.Run("Stat_NotFound", suite.testStatNotFound)
	t.Run("Stat_TracksAppends", suite.testStatTracksAppends)
	t.Run("TotalSize_Empty", suite.testTotalSizeEmpty)
	t.Run("TotalSize_Multiple", suite.testTotalSizeMultiple)
	t.Run("TotalSize_AfterRemove", suite.testTotalSizeAfterRemove)
	t.Run("TotalSize_Flat", suite.testTotalSizeFlat)
}

func (suite *StoreTestSuite) testTotalSizeEmpty(t *testing.T) {
	store := suite.NewStore()
	assert.Equal(t, uint64(0), store.TotalSize(testContext()))
}

func (suite *StoreTestSuite) testTotalSizeMultiple(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "one", generateTestData(100))
	mustWrite(t, store, "two", generateTestData(200))
	mustWrite(t, store, "three", generateTestData(300))

	assert.Equal(t, uint64(600), store.TotalSize(testContext()))
}

func (suite *StoreTestSuite) testTotalSizeAfterRemove(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "one", generateTestData(100))
	mustWrite(t, store, "two", generateTestData(200))
	require.NoError(t, store.Remove(testContext(), "two"))

	assert.Equal(t, uint64(100), store.TotalSize(testContext()))
}

// Blobs below subdirectories are not counted.
func (suite *StoreTestSuite) testTotalSizeFlat(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "top", generateTestData(10))
	mustWrite(t, store, "nested/deep", generateTestData(1000))

	assert.Equal(t, uint64(10), store.TotalSize(testContext()))
}

func (suite *StoreTestSuite) testStatNotFound(t *testing.T) {
	store := suite.NewStore()

	_, err := store.Stat(testContext(), "missing.bin")
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testStatTracksAppends(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "log.txt", []byte("12345"))
	info, err := store.Stat(testContext(), "log.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), info.Size)
	// Some backends keep whole-second timestamps
	assert.WithinDuration(t, time.Now(), info.ModTime, 5*time.Second)

	mustWrite(t, store, "log.txt", []byte("678"))
	info, err = store.Stat(testContext(), "log.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), info.Size)
}
