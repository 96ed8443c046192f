package nonce

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryStore_CheckAndConsume(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ok, err := store.CheckAndConsume(ctx, Incoming, "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("first use should be accepted")
	}

	ok, _ = store.CheckAndConsume(ctx, Incoming, "abc")
	if ok {
		t.Fatalf("replay within the window should be rejected")
	}

	// other namespace unaffected
	ok, _ = store.CheckAndConsume(ctx, Outgoing, "abc")
	if !ok {
		t.Fatalf("same value should be fresh in the other namespace")
	}
}

func TestMemoryStore_WindowExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	if ok, _ := store.CheckAndConsume(ctx, Incoming, "abc"); !ok {
		t.Fatalf("first use should be accepted")
	}
	if ok, _ := store.CheckAndConsume(ctx, Incoming, "abc"); ok {
		t.Fatalf("immediate replay should be rejected")
	}

	// 13 hours later the same value is acceptable again
	current = current.Add(13 * time.Hour)
	if ok, _ := store.CheckAndConsume(ctx, Incoming, "abc"); !ok {
		t.Fatalf("nonce should be valid again after the window elapses")
	}
}

func TestMemoryStore_ConcurrentSingleWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const workers = 32
	var wins int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			ok, err := store.CheckAndConsume(ctx, Incoming, "contested")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestFresh_SkipsConsumedValues(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	v1, err := Fresh(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, err := Fresh(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v1 == "" || v2 == "" || v1 == v2 {
		t.Fatalf("expected two distinct non-empty nonces, got %q and %q", v1, v2)
	}

	// a fresh value is consumed: reusing it in the outgoing namespace fails
	if ok, _ := store.CheckAndConsume(ctx, Outgoing, v1); ok {
		t.Fatalf("fresh nonce should already be recorded")
	}
}
