package concurrent

import (
	"context"
	"errors"
	"sync"
)

const defaultConcurrency = 10

// ForEach runs fn on every item with at most maxConcurrency calls in
// flight. Unlike a fail-fast group it always visits every item, so cleanup
// work is never skipped; the returned error joins every failure. Items not
// started before ctx is done report ctx.Err().
func ForEach[T any](ctx context.Context, items []T, fn func(T) error, maxConcurrency int) error {
	if len(items) == 0 {
		return nil
	}
	if maxConcurrency <= 0 {
		maxConcurrency = defaultConcurrency
	}

	errs := make([]error, len(items))
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, val T) {
			defer wg.Done()

			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return
			}
			select {
			case <-ctx.Done():
				errs[idx] = ctx.Err()
			case sem <- struct{}{}:
				defer func() { <-sem }()
				errs[idx] = fn(val)
			}
		}(i, item)
	}

	wg.Wait()
	return errors.Join(errs...)
}
