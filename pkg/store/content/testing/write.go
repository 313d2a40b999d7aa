package testing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWriteTests executes append semantics tests.
func (suite *StoreTestSuite) RunWriteTests(t *testing.T) {
	t.Run("Write_Basic", suite.testWriteBasic)
	t.Run("Write_Appends", suite.testWriteAppends)
	t.Run("Write_CreatesParents", suite.testWriteCreatesParents)
	t.Run("Write_SourceError", suite.testWriteSourceError)
}

func (suite *StoreTestSuite) testWriteBasic(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "basic.txt", []byte("payload"))
	assert.Equal(t, []byte("payload"), mustRead(t, store, "basic.txt"))
}

func (suite *StoreTestSuite) testWriteAppends(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "append.bin", []byte{1, 2, 3})
	mustWrite(t, store, "append.bin", []byte{4, 5})

	assert.Equal(t, []byte{1, 2, 3, 4, 5}, mustRead(t, store, "append.bin"))
}

func (suite *StoreTestSuite) testWriteCreatesParents(t *testing.T) {
	store := suite.NewStore()

	mustWrite(t, store, "docs/2024/report.txt", []byte("nested"))
	assert.Equal(t, []byte("nested"), mustRead(t, store, "docs/2024/report.txt"))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("source broke")
}

func (suite *StoreTestSuite) testWriteSourceError(t *testing.T) {
	store := suite.NewStore()

	_, err := store.Write(testContext(), "broken.txt", failingReader{})
	require.Error(t, err)
}
