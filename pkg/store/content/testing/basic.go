package testing

import (
	"testing"

	"github.com/marmos91/binder/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests executes read, existence and removal tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Read_NotFound", suite.testReadNotFound)
	t.Run("Read_Success", suite.testReadSuccess)
	t.Run("Read_Empty", suite.testReadEmpty)
	t.Run("Read_Large", suite.testReadLarge)
	t.Run("Exists", suite.testExists)
	t.Run("Remove_Success", suite.testRemoveSuccess)
	t.Run("Remove_NotFound", suite.testRemoveNotFound)
	t.Run("InvalidPath", suite.testInvalidPath)
	t.Run("List", suite.testList)
}

func (suite *StoreTestSuite) testReadNotFound(t *testing.T) {
	store := suite.NewStore()

	_, err := store.Read(testContext(), "missing.bin")
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testReadSuccess(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "hello.txt", []byte("Hello, World!"))
	assert.Equal(t, []byte("Hello, World!"), mustRead(t, store, "hello.txt"))
}

func (suite *StoreTestSuite) testReadEmpty(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "empty.txt", []byte{})
	assert.Empty(t, mustRead(t, store, "empty.txt"))
}

func (suite *StoreTestSuite) testReadLarge(t *testing.T) {
	store := suite.NewStore()

	data := generateTestData(1 << 20)
	mustWrite(t, store, "large.bin", data)
	assert.Equal(t, data, mustRead(t, store, "large.bin"))
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.NewStore()

	ok, err := store.Exists(testContext(), "a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	mustWrite(t, store, "a.txt", []byte("a"))

	ok, err = store.Exists(testContext(), "a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func (suite *StoreTestSuite) testRemoveSuccess(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "gone.txt", []byte("bye"))
	require.NoError(t, store.Remove(testContext(), "gone.txt"))

	_, err := store.Read(testContext(), "gone.txt")
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testRemoveNotFound(t *testing.T) {
	store := suite.NewStore()

	err := store.Remove(testContext(), "never-written.txt")
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testInvalidPath(t *testing.T) {
	store := suite.NewStore()

	_, err := store.Write(testContext(), "../escape.txt", nil)
	assert.ErrorIs(t, err, content.ErrInvalidPath)

	_, err = store.Read(testContext(), "/etc/passwd")
	assert.ErrorIs(t, err, content.ErrInvalidPath)
}

func (suite *StoreTestSuite) testList(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "b.txt", []byte("b"))
	mustWrite(t, store, "a.txt", []byte("a"))

	names, err := store.List(testContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
}
