package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// forEachBatch fans items out in small concurrent batches with a smoothing
// delay between batches. Items in a batch settle independently: fn handles
// its own failures and never aborts siblings. Returns false when the context
// expired before all items ran (the remainder is abandoned).
func forEachBatch[T any](ctx context.Context, items []T, size int, delay time.Duration, fn func(ctx context.Context, item T)) bool {
	if size <= 0 {
		size = 1
	}

	for start := 0; start < len(items); start += size {
		if ctx.Err() != nil {
			return false
		}

		end := min(start+size, len(items))
		g, gctx := errgroup.WithContext(ctx)
		for _, item := range items[start:end] {
			item := item
			g.Go(func() error {
				fn(gctx, item)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(items) && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-timer.C:
			}
		}
	}
	return ctx.Err() == nil
}
