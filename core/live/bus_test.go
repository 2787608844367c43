package live

import (
	"context"
	"sync"
	"testing"
	"time"
)

func Test_Bus_publishRouting(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	got := make(map[string]int)
	record := func(key string) func(Change) {
		return func(Change) {
			mu.Lock()
			got[key]++
			mu.Unlock()
		}
	}

	if _, err := bus.Subscribe(context.Background(), "profiles", nil, record("all-profiles")); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	if _, err := bus.Subscribe(context.Background(), "profiles", FieldEq("member_id", "m1"), record("m1-profiles")); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	if _, err := bus.Subscribe(context.Background(), "donations", nil, record("donations")); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	bus.Publish(Change{Table: "profiles", Op: OpUpdate, New: Row{"member_id": "m1"}})
	bus.Publish(Change{Table: "profiles", Op: OpUpdate, New: Row{"member_id": "m2"}})
	bus.Publish(Change{Table: "announcements", Op: OpInsert, New: Row{"title": "x"}})

	mu.Lock()
	defer mu.Unlock()
	if got["all-profiles"] != 2 {
		t.Errorf("unfiltered channel got %d changes, want 2", got["all-profiles"])
	}
	if got["m1-profiles"] != 1 {
		t.Errorf("filtered channel got %d changes, want 1", got["m1-profiles"])
	}
	if got["donations"] != 0 {
		t.Errorf("donations channel got %d changes, want 0", got["donations"])
	}
}

func Test_Bus_unsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var count int
	unsub, err := bus.Subscribe(context.Background(), "profiles", nil, func(Change) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	bus.Publish(Change{Table: "profiles", Op: OpInsert})
	unsub()
	unsub()
	bus.Publish(Change{Table: "profiles", Op: OpInsert})

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("got %d deliveries, want 1", count)
	}
}

// cancelling the subscription context releases the channel without an
// explicit unsubscribe call
func Test_Bus_contextCancellationReleases(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())

	delivered := make(chan struct{}, 4)
	if _, err := bus.Subscribe(ctx, "profiles", nil, func(Change) {
		delivered <- struct{}{}
	}); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	bus.Publish(Change{Table: "profiles", Op: OpInsert})
	<-delivered

	cancel()
	// the release goroutine needs a beat
	for i := 0; i < 200; i++ {
		bus.mu.RLock()
		empty := len(bus.subs["profiles"]) == 0
		bus.mu.RUnlock()
		if empty {
			break
		}
		time.Sleep(time.Millisecond)
	}

	bus.Publish(Change{Table: "profiles", Op: OpInsert})
	select {
	case <-delivered:
		t.Error("delivery after context cancellation")
	default:
	}
}

func Test_FieldEq_fallsBackToOldRow(t *testing.T) {
	f := FieldEq("member_id", "m1")
	if !f(Change{Op: OpDelete, Old: Row{"member_id": "m1"}}) {
		t.Error("delete of own row should match")
	}
	if f(Change{Op: OpDelete, Old: Row{"member_id": "m2"}}) {
		t.Error("delete of another row should not match")
	}
}
