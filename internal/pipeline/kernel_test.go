package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernelBoundsParallelism(t *testing.T) {
	k := newKernel(3)

	var current, peak int32
	err := k.forEach(context.Background(), 20, func(ctx context.Context, i int) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&current, -1)
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int32(3))
	assert.Greater(t, peak, int32(0))
}

func TestKernelRunsEveryItem(t *testing.T) {
	k := newKernel(4)

	var mu sync.Mutex
	seen := make(map[int]bool)
	err := k.forEach(context.Background(), 50, func(ctx context.Context, i int) {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
	})

	require.NoError(t, err)
	assert.Len(t, seen, 50)
}

func TestKernelStopsSchedulingOnCancel(t *testing.T) {
	k := newKernel(1)
	ctx, cancel := context.WithCancel(context.Background())

	var ran int32
	err := k.forEach(ctx, 100, func(ctx context.Context, i int) {
		if atomic.AddInt32(&ran, 1) == 1 {
			cancel()
		}
		time.Sleep(time.Millisecond)
	})

	assert.ErrorIs(t, err, context.Canceled)
	// with capacity 1, at most one more item can have been admitted after
	// the cancel
	assert.LessOrEqual(t, atomic.LoadInt32(&ran), int32(2))
}

func TestKernelSequentialWithCapacityOne(t *testing.T) {
	k := newKernel(1)

	var order []int
	err := k.forEach(context.Background(), 10, func(ctx context.Context, i int) {
		order = append(order, i) // safe: capacity 1 serializes
	})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}
