package transcript

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateListAndTouchSessions(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	first, err := s.CreateSession(ctx, "u1", "")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if first.Title != "New Chat" {
		t.Fatalf("default title = %q, want %q", first.Title, "New Chat")
	}

	second, err := s.CreateSession(ctx, "u1", "AAPL research")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := s.CreateSession(ctx, "u2", "other user"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// Ensure distinct timestamps, then bump the first session.
	time.Sleep(time.Millisecond)
	if err := s.TouchSession(ctx, first.ID); err != nil {
		t.Fatalf("TouchSession() error = %v", err)
	}

	sessions, err := s.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions for u1 = %d, want 2", len(sessions))
	}
	if sessions[0].ID != first.ID {
		t.Fatalf("newest session = %s, want touched session %s", sessions[0].ID, first.ID)
	}
	if sessions[1].ID != second.ID {
		t.Fatalf("second session = %s, want %s", sessions[1].ID, second.ID)
	}
}

func TestAppendAndListMessages(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	sess, err := s.CreateSession(ctx, "u1", "")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := s.AppendMessage(ctx, Message{SessionID: sess.ID, Role: RoleUser, Content: "question"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if err := s.AppendMessage(ctx, Message{SessionID: sess.ID, Role: RoleAI, Content: "answer"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	msgs, err := s.ListMessages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("message count = %d, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAI {
		t.Fatalf("roles = %q, %q, want user then ai", msgs[0].Role, msgs[1].Role)
	}
	if msgs[0].ID == "" || msgs[0].CreatedAt.IsZero() {
		t.Fatalf("message missing generated ID or timestamp: %+v", msgs[0])
	}
}

func TestUnknownSessionErrors(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	if _, err := s.GetSession(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("GetSession() error = %v, want ErrSessionNotFound", err)
	}
	if err := s.AppendMessage(ctx, Message{SessionID: "nope", Role: RoleUser, Content: "x"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("AppendMessage() error = %v, want ErrSessionNotFound", err)
	}
	if err := s.TouchSession(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("TouchSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestFactoryDefaultsToInMemory(t *testing.T) {
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()
	if _, ok := store.(*InMemoryStore); !ok {
		t.Fatalf("store type = %T, want *InMemoryStore", store)
	}
}
