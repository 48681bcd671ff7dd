package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEach_FillsEverySlot(t *testing.T) {
	for _, workers := range []int{1, 3, 0} {
		out := make([]int, 50)
		err := ForEach(context.Background(), len(out), workers, func(_ context.Context, i int) error {
			out[i] = i * i
			return nil
		})
		require.NoError(t, err)
		for i, v := range out {
			assert.Equal(t, i*i, v)
		}
	}
}

func TestForEach_FirstErrorWins(t *testing.T) {
	boom := errors.New("fold 3 failed")
	var calls atomic.Int32
	err := ForEach(context.Background(), 100, 1, func(_ context.Context, i int) error {
		calls.Add(1)
		if i == 3 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Less(t, calls.Load(), int32(100))
}

func TestForEach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ForEach(ctx, 10, 2, func(context.Context, int) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestParallelize_CoversRange(t *testing.T) {
	seen := make([]int32, 37)
	Parallelize(len(seen), 4, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	})
	for i, v := range seen {
		assert.Equal(t, int32(1), v, "index %d", i)
	}

	called := false
	ParallelizeWithThreshold(5, 10, 4, func(start, end int) {
		called = true
		assert.Equal(t, 0, start)
		assert.Equal(t, 5, end)
	})
	assert.True(t, called)
}
