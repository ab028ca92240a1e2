// Package workpool runs indexed tasks on a bounded errgroup.
package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run calls fn(ctx, i) for every i in [0, n) using at most workers goroutines.
// With workers <= 1 the tasks run sequentially in index order. The first error
// cancels ctx for the remaining tasks and is returned.
func Run(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
