package testing

import (
	"testing"

	"github.com/marmos91/binder/pkg/store/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunEntryTests executes lookup, insert and removal tests.
func (suite *StoreTestSuite) RunEntryTests(t *testing.T) {
	t.Run("Find_Absent", suite.testFindAbsent)
	t.Run("Insert_Find", suite.testInsertFind)
	t.Run("Insert_DuplicatePath", suite.testInsertDuplicatePath)
	t.Run("Insert_DuplicateID", suite.testInsertDuplicateID)
	t.Run("ListAll_Ordered", suite.testListAllOrdered)
	t.Run("RemoveByPath", suite.testRemoveByPath)
	t.Run("RemoveByPath_Absent", suite.testRemoveByPathAbsent)
	t.Run("Persistence_AcrossSessions", suite.testAcrossSessions)
	t.Run("Healthcheck", suite.testHealthcheck)
}

func (suite *StoreTestSuite) testFindAbsent(t *testing.T) {
	store := suite.newStore(t, 2)
	sess := mustAcquire(t, store)
	defer sess.Release()

	e, err := sess.Find(testContext(), index.MinID)
	require.NoError(t, err)
	assert.Nil(t, e)

	e, err = sess.FindByPath(testContext(), "missing.txt")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func (suite *StoreTestSuite) testInsertFind(t *testing.T) {
	store := suite.newStore(t, 2)
	sess := mustAcquire(t, store)
	defer sess.Release()

	mustInsert(t, sess, 1234567890123456, "report.pdf")

	byID, err := sess.Find(testContext(), 1234567890123456)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, index.Entry{ID: 1234567890123456, Path: "report.pdf"}, *byID)

	byPath, err := sess.FindByPath(testContext(), "report.pdf")
	require.NoError(t, err)
	require.NotNil(t, byPath)
	assert.Equal(t, *byID, *byPath)
}

func (suite *StoreTestSuite) testInsertDuplicatePath(t *testing.T) {
	store := suite.newStore(t, 2)
	sess := mustAcquire(t, store)
	defer sess.Release()

	mustInsert(t, sess, 1000000000000001, "dup.txt")

	err := sess.Insert(testContext(), index.Entry{ID: 1000000000000002, Path: "dup.txt"})
	assert.ErrorIs(t, err, index.ErrDuplicatePath)

	e, err := sess.Find(testContext(), 1000000000000002)
	require.NoError(t, err)
	assert.Nil(t, e, "failed insert must not leave a row behind")
}

func (suite *StoreTestSuite) testInsertDuplicateID(t *testing.T) {
	store := suite.newStore(t, 2)
	sess := mustAcquire(t, store)
	defer sess.Release()

	mustInsert(t, sess, 1000000000000001, "a.txt")

	err := sess.Insert(testContext(), index.Entry{ID: 1000000000000001, Path: "b.txt"})
	assert.ErrorIs(t, err, index.ErrDuplicateID)

	e, err := sess.FindByPath(testContext(), "b.txt")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func (suite *StoreTestSuite) testListAllOrdered(t *testing.T) {
	store := suite.newStore(t, 2)
	sess := mustAcquire(t, store)
	defer sess.Release()

	entries, err := sess.ListAll(testContext())
	require.NoError(t, err)
	assert.Empty(t, entries)

	mustInsert(t, sess, 3000000000000000, "c.txt")
	mustInsert(t, sess, 1000000000000000, "a.txt")
	mustInsert(t, sess, 2000000000000000, "b.txt")

	entries, err = sess.ListAll(testContext())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a.txt", entries[0].Path)
	assert.Equal(t, "b.txt", entries[1].Path)
	assert.Equal(t, "c.txt", entries[2].Path)
	assert.Equal(t, int64(2000000000000000), entries[1].ID)
}

func (suite *StoreTestSuite) testRemoveByPath(t *testing.T) {
	store := suite.newStore(t, 2)
	sess := mustAcquire(t, store)
	defer sess.Release()

	mustInsert(t, sess, 1000000000000001, "gone.txt")
	require.NoError(t, sess.RemoveByPath(testContext(), "gone.txt"))

	e, err := sess.FindByPath(testContext(), "gone.txt")
	require.NoError(t, err)
	assert.Nil(t, e)

	e, err = sess.Find(testContext(), 1000000000000001)
	require.NoError(t, err)
	assert.Nil(t, e)

	// Both the path and the id are free again.
	mustInsert(t, sess, 1000000000000001, "gone.txt")
}

func (suite *StoreTestSuite) testRemoveByPathAbsent(t *testing.T) {
	store := suite.newStore(t, 2)
	sess := mustAcquire(t, store)
	defer sess.Release()

	assert.NoError(t, sess.RemoveByPath(testContext(), "never.txt"))
}

func (suite *StoreTestSuite) testAcrossSessions(t *testing.T) {
	store := suite.newStore(t, 2)

	writer := mustAcquire(t, store)
	mustInsert(t, writer, 1000000000000009, "shared.txt")
	writer.Release()

	reader := mustAcquire(t, store)
	defer reader.Release()

	e, err := reader.FindByPath(testContext(), "shared.txt")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, int64(1000000000000009), e.ID)
}

func (suite *StoreTestSuite) testHealthcheck(t *testing.T) {
	store := suite.newStore(t, 1)
	assert.NoError(t, store.Healthcheck(testContext()))
}
