package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	w := NewWindows(5, time.Minute)
	w.Append("u1", Turn{Question: "q1", Answer: "a1"})

	first := w.GetOrCreate("u1")
	second := w.GetOrCreate("u1")

	if len(first.Turns) != 1 || len(second.Turns) != 1 {
		t.Fatalf("turn counts = %d, %d, want 1, 1", len(first.Turns), len(second.Turns))
	}
	if first.CreatedAt != second.CreatedAt {
		t.Fatalf("CreatedAt differs across calls: %v vs %v", first.CreatedAt, second.CreatedAt)
	}
	if first.Turns[0] != second.Turns[0] {
		t.Fatalf("window contents differ: %+v vs %+v", first.Turns[0], second.Turns[0])
	}
}

func TestAppendTrimsOldestPastCapacity(t *testing.T) {
	w := NewWindows(5, time.Minute)
	for i := 0; i < 6; i++ {
		w.Append("u1", Turn{Question: fmt.Sprintf("q%d", i), Answer: fmt.Sprintf("a%d", i)})
	}

	s := w.GetOrCreate("u1")
	if len(s.Turns) != 5 {
		t.Fatalf("window length = %d, want 5", len(s.Turns))
	}
	if s.Turns[0].Question != "q1" {
		t.Fatalf("oldest question = %q, want %q (q0 evicted)", s.Turns[0].Question, "q1")
	}
	for i, turn := range s.Turns {
		want := fmt.Sprintf("q%d", i+1)
		if turn.Question != want {
			t.Fatalf("turn %d question = %q, want %q", i, turn.Question, want)
		}
	}
}

func TestWindowsAreIndependentPerUser(t *testing.T) {
	w := NewWindows(5, time.Minute)
	w.Append("u1", Turn{Question: "u1 question"})
	w.Append("u2", Turn{Question: "u2 question"})

	if got := w.GetOrCreate("u1").Turns[0].Question; got != "u1 question" {
		t.Fatalf("u1 question = %q", got)
	}
	if got := w.GetOrCreate("u2").Turns[0].Question; got != "u2 question" {
		t.Fatalf("u2 question = %q", got)
	}
	if w.ActiveCount() != 2 {
		t.Fatalf("ActiveCount = %d, want 2", w.ActiveCount())
	}
}

func TestConcurrentAppendsNeverExceedCapacity(t *testing.T) {
	w := NewWindows(5, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w.Append("u1", Turn{Question: fmt.Sprintf("q%d", i)})
		}(i)
	}
	wg.Wait()

	if got := len(w.GetOrCreate("u1").Turns); got != 5 {
		t.Fatalf("window length = %d, want 5", got)
	}
}

func TestJanitorEvictsExpiredWindows(t *testing.T) {
	w := NewWindows(5, 5*time.Second)
	w.Append("u1", Turn{Question: "old"})

	// Expire the entry directly rather than waiting out a real TTL.
	w.mu.Lock()
	w.byUser["u1"].expiresAt = time.Now().UTC().Add(-time.Second)
	w.mu.Unlock()

	evicted := make(chan string, 1)
	w.SetEvictHook(func(userID string) { evicted <- userID })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case userID := <-evicted:
		if userID != "u1" {
			t.Fatalf("evicted user = %q, want u1", userID)
		}
	case <-time.After(time.Second):
		t.Fatalf("janitor did not evict expired window")
	}

	if got := len(w.GetOrCreate("u1").Turns); got != 0 {
		t.Fatalf("recreated window has %d turns, want 0", got)
	}
}

func TestExpiredWindowRecreatedLazily(t *testing.T) {
	w := NewWindows(5, 5*time.Second)
	w.Append("u1", Turn{Question: "old"})

	w.mu.Lock()
	w.byUser["u1"].expiresAt = time.Now().UTC().Add(-time.Second)
	w.mu.Unlock()

	s := w.GetOrCreate("u1")
	if len(s.Turns) != 0 {
		t.Fatalf("expired window returned %d turns, want fresh empty window", len(s.Turns))
	}
	if !s.ExpiresAt.After(time.Now().UTC()) {
		t.Fatalf("fresh window expiry %v is not in the future", s.ExpiresAt)
	}
}
