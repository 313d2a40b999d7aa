package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomGenerator_Range(t *testing.T) {
	gen := RandomGenerator{}
	for i := 0; i < 1000; i++ {
		id, err := gen.NewID()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, id, MinID)
		assert.LessOrEqual(t, id, MaxID)
	}
}

func TestGeneratorFunc(t *testing.T) {
	gen := GeneratorFunc(func() (int64, error) { return 42, nil })
	id, err := gen.NewID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestSlots_AcquireRelease(t *testing.T) {
	slots := NewSlots(2, time.Second)
	ctx := context.Background()

	require.NoError(t, slots.Acquire(ctx))
	require.NoError(t, slots.Acquire(ctx))
	assert.Equal(t, 2, slots.InUse())

	slots.Release()
	assert.Equal(t, 1, slots.InUse())
	require.NoError(t, slots.Acquire(ctx))
}

func TestSlots_Timeout(t *testing.T) {
	slots := NewSlots(1, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, slots.Acquire(ctx))

	start := time.Now()
	err := slots.Acquire(ctx)
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSlots_ContextCancelled(t *testing.T) {
	slots := NewSlots(1, time.Minute)
	require.NoError(t, slots.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, slots.Acquire(ctx), context.Canceled)
}

func TestSlots_Defaults(t *testing.T) {
	slots := NewSlots(0, 0)
	assert.Equal(t, 1, slots.Size())
	assert.Equal(t, DefaultAcquireTimeout, slots.Timeout())
}

func TestSlots_ReleaseUnblocksWaiter(t *testing.T) {
	slots := NewSlots(1, time.Second)
	require.NoError(t, slots.Acquire(context.Background()))

	done := make(chan error, 1)
	go func() { done <- slots.Acquire(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	slots.Release()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was not unblocked")
	}
}
