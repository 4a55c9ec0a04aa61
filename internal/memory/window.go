package memory

import (
	"context"
	"log"
	"sync"
	"time"
)

type windowEntry struct {
	mu        sync.Mutex
	turns     []Turn
	createdAt time.Time
	expiresAt time.Time
	evicted   bool
}

// Windows owns the process-wide cache of per-user recent-turn windows.
// Each window holds at most capacity turns in chronological order and
// expires a fixed TTL after creation, not after last access. Lost windows
// are a continuity optimization only; nothing is persisted on expiry.
type Windows struct {
	mu       sync.RWMutex
	byUser   map[string]*windowEntry
	capacity int
	ttl      time.Duration
	onEvict  func(userID string)
}

func NewWindows(capacity int, ttl time.Duration) *Windows {
	if capacity <= 0 {
		capacity = 5
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Windows{
		byUser:   make(map[string]*windowEntry),
		capacity: capacity,
		ttl:      ttl,
	}
}

func (w *Windows) SetEvictHook(hook func(userID string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onEvict = hook
}

// GetOrCreate returns a snapshot of the user's non-expired window, creating
// an empty one with a fresh expiry when absent or already expired.
func (w *Windows) GetOrCreate(userID string) Session {
	e := w.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	turns := make([]Turn, len(e.turns))
	copy(turns, e.turns)
	return Session{
		UserID:    userID,
		Turns:     turns,
		CreatedAt: e.createdAt,
		ExpiresAt: e.expiresAt,
	}
}

// Append adds a turn to the user's window, trimming the oldest entry past
// capacity. A missing or expired window is created on demand, so the append
// never fails from the caller's point of view.
func (w *Windows) Append(userID string, turn Turn) {
	for {
		e := w.entry(userID)
		e.mu.Lock()
		if e.evicted {
			// Lost the race with the janitor; the next entry() call
			// creates a fresh window.
			e.mu.Unlock()
			continue
		}
		e.turns = append(e.turns, turn)
		if len(e.turns) > w.capacity {
			e.turns = e.turns[len(e.turns)-w.capacity:]
		}
		e.mu.Unlock()
		return
	}
}

// entry returns the live window for userID, replacing an expired one. The
// expiry check here is the lazy half; the janitor sweep is the eager half.
func (w *Windows) entry(userID string) *windowEntry {
	now := time.Now().UTC()

	w.mu.RLock()
	e, ok := w.byUser[userID]
	w.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.byUser[userID]; ok && now.Before(e.expiresAt) {
		return e
	}
	if old, ok := w.byUser[userID]; ok {
		old.mu.Lock()
		old.evicted = true
		old.mu.Unlock()
	}
	fresh := &windowEntry{
		createdAt: now,
		expiresAt: now.Add(w.ttl),
	}
	w.byUser[userID] = fresh
	return fresh
}

func (w *Windows) ActiveCount() int {
	now := time.Now().UTC()
	w.mu.RLock()
	defer w.mu.RUnlock()
	count := 0
	for _, e := range w.byUser {
		if now.Before(e.expiresAt) {
			count++
		}
	}
	return count
}

// StartJanitor sweeps expired windows until ctx is cancelled.
func (w *Windows) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.sweep()
			}
		}
	}()
}

func (w *Windows) sweep() {
	now := time.Now().UTC()
	var expired []string

	w.mu.Lock()
	for userID, e := range w.byUser {
		if now.Before(e.expiresAt) {
			continue
		}
		// Marking under the entry lock lets an in-flight append finish
		// or cleanly restart on a fresh window.
		e.mu.Lock()
		e.evicted = true
		e.mu.Unlock()
		delete(w.byUser, userID)
		expired = append(expired, userID)
	}
	hook := w.onEvict
	w.mu.Unlock()

	if len(expired) > 0 {
		log.Printf("[memory] swept %d expired windows", len(expired))
	}
	if hook != nil {
		for _, userID := range expired {
			hook(userID)
		}
	}
}
