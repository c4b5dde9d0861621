package research

import (
	"context"
	"sync"
)

// itemError pairs a fan-out key with its suppressed error.
type itemError struct {
	Key string
	Err error
}

// collect runs fn over items with at most workers goroutines and never
// raises: failed items are dropped and their errors returned on the side
// for logging. Result order follows the input order of successful items.
func collect[V any](ctx context.Context, items []string, workers int, fn func(context.Context, string) (V, error)) (map[string]V, []string, []itemError) {
	if workers <= 0 {
		workers = 1
	}
	if len(items) == 0 {
		return map[string]V{}, nil, nil
	}

	type outcome struct {
		key string
		val V
		err error
	}

	sem := make(chan struct{}, workers)
	results := make([]outcome, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			val, err := fn(ctx, item)
			results[i] = outcome{key: item, val: val, err: err}
		}(i, item)
	}
	wg.Wait()

	out := make(map[string]V, len(items))
	var order []string
	var suppressed []itemError
	for _, r := range results {
		if r.err != nil {
			suppressed = append(suppressed, itemError{Key: r.key, Err: r.err})
			continue
		}
		out[r.key] = r.val
		order = append(order, r.key)
	}
	return out, order, suppressed
}
