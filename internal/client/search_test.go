package client

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncerDispatchesOnlyLastQuery(t *testing.T) {
	var (
		mu         sync.Mutex
		dispatched []string
	)

	d := NewDebouncer(func(query string) {
		mu.Lock()
		dispatched = append(dispatched, query)
		mu.Unlock()
	})
	d.delay = 30 * time.Millisecond

	d.Update("a")
	d.Update("ab")
	d.Update("abc")

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(dispatched) != 1 {
		t.Fatalf("dispatched %d queries, want 1: %v", len(dispatched), dispatched)
	}
	if dispatched[0] != "abc" {
		t.Fatalf("dispatched %q, want the last input", dispatched[0])
	}
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	var (
		mu         sync.Mutex
		dispatched []string
	)

	d := NewDebouncer(func(query string) {
		mu.Lock()
		dispatched = append(dispatched, query)
		mu.Unlock()
	})
	d.delay = 30 * time.Millisecond

	d.Update("abandoned")
	d.Stop()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(dispatched) != 0 {
		t.Fatalf("stop did not cancel: %v", dispatched)
	}
}

func TestDebouncerFlushDispatchesImmediately(t *testing.T) {
	var (
		mu         sync.Mutex
		dispatched []string
	)

	d := NewDebouncer(func(query string) {
		mu.Lock()
		dispatched = append(dispatched, query)
		mu.Unlock()
	})
	d.delay = time.Hour

	d.Update("slow")
	d.Flush("now")

	mu.Lock()
	defer mu.Unlock()
	if len(dispatched) != 1 || dispatched[0] != "now" {
		t.Fatalf("dispatched = %v", dispatched)
	}
}
