package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/marmos91/binder/pkg/store/content"
	storetesting "github.com/marmos91/binder/pkg/store/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryContentStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func() content.Store {
			store, err := NewMemoryContentStore(context.Background(), "")
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestMemoryContentStore_ReaderIsSnapshot(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryContentStore(ctx, "/srv/binder")
	require.NoError(t, err)

	_, err = store.Write(ctx, "a", bytes.NewReader([]byte("abc")))
	require.NoError(t, err)

	r, err := store.Read(ctx, "a")
	require.NoError(t, err)

	_, err = store.Write(ctx, "a", bytes.NewReader([]byte("def")))
	require.NoError(t, err)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestMemoryContentStore_Locate(t *testing.T) {
	store, err := NewMemoryContentStore(context.Background(), "/srv/binder")
	require.NoError(t, err)
	assert.Equal(t, "/srv/binder/a.txt", store.Locate("a.txt"))

	store, err = NewMemoryContentStore(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "memory://a.txt", store.Locate("a.txt"))
}
