package memory

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/binder/pkg/store/index"
	indextesting "github.com/marmos91/binder/pkg/store/index/testing"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndexStore(t *testing.T) {
	suite := &indextesting.StoreTestSuite{
		NewStore: func(t *testing.T, poolSize int) index.Store {
			store, err := NewMemoryIndexStore(context.Background(), Config{
				PoolSize:       poolSize,
				AcquireTimeout: 200 * time.Millisecond,
			})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}
