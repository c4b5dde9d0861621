package research

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCollectDropsFailures(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	vals, order, suppressed := collect(context.Background(), items, 2, func(_ context.Context, s string) (string, error) {
		if s == "b" || s == "d" {
			return "", fmt.Errorf("nope")
		}
		return "v:" + s, nil
	})
	if len(vals) != 2 || vals["a"] != "v:a" || vals["c"] != "v:c" {
		t.Fatalf("unexpected values: %v", vals)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "c" {
		t.Fatalf("order must follow input order of survivors: %v", order)
	}
	if len(suppressed) != 2 {
		t.Fatalf("expected 2 suppressed errors, got %d", len(suppressed))
	}
}

func TestCollectRespectsWorkerBound(t *testing.T) {
	var inFlight, peak int64
	var mu sync.Mutex
	block := make(chan struct{})
	items := []string{"1", "2", "3", "4", "5", "6"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		collect(context.Background(), items, 2, func(_ context.Context, s string) (string, error) {
			n := atomic.AddInt64(&inFlight, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			<-block
			atomic.AddInt64(&inFlight, -1)
			return s, nil
		})
	}()

	close(block)
	<-done
	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Fatalf("worker bound violated: peak %d", peak)
	}
}

func TestCollectEmptyInput(t *testing.T) {
	vals, order, suppressed := collect(context.Background(), nil, 3, func(_ context.Context, s string) (int, error) {
		return 0, nil
	})
	if len(vals) != 0 || order != nil || suppressed != nil {
		t.Fatalf("empty input must yield empty outputs: %v %v %v", vals, order, suppressed)
	}
}
