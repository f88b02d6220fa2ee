package pipeline

import (
	"context"
	"sync"
)

// kernel bounds per-symbol parallelism with a counting semaphore. One
// instance lives per pipeline, created with the pipeline itself.
type kernel struct {
	sem chan struct{}
}

func newKernel(parallelism int) *kernel {
	if parallelism < 1 {
		parallelism = 1
	}
	return &kernel{sem: make(chan struct{}, parallelism)}
}

// forEach runs fn for each index, at most cap(sem) at a time. Once ctx is
// cancelled no new work is scheduled; in-flight work is waited for and the
// cancellation is surfaced.
func (k *kernel) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			wg.Wait()
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case k.sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-k.sem }()
			fn(ctx, i)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}
