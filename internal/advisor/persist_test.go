package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dataflowhq/advisor/internal/memory"
	"github.com/dataflowhq/advisor/internal/transcript"
)

type brokenEmbedder struct{}

func (brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("vector backend down")
}

func (brokenEmbedder) Dimensions() int { return 8 }

// brokenTranscripts fails every write while still satisfying the interface.
type brokenTranscripts struct {
	transcript.Store
}

func (brokenTranscripts) AppendMessage(context.Context, transcript.Message) error {
	return errors.New("transcript backend down")
}

func outcome(t *testing.T, outcomes []Outcome, backend string) Outcome {
	t.Helper()
	for _, o := range outcomes {
		if o.Backend == backend {
			return o
		}
	}
	t.Fatalf("no outcome for backend %q in %+v", backend, outcomes)
	return Outcome{}
}

func newTestSession(t *testing.T, store transcript.Store) transcript.Session {
	t.Helper()
	sess, err := store.CreateSession(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return sess
}

func TestCommitAllBackendsSucceed(t *testing.T) {
	windows := memory.NewWindows(5, time.Minute)
	longTerm := memory.NewLongTerm(memory.NewHashEmbedder(32))
	store := transcript.NewInMemoryStore()
	sess := newTestSession(t, store)

	p := NewPersister(windows, longTerm, store, time.Second, nil)
	outcomes := p.Commit(context.Background(), "u1", sess.ID, "q?", Result{Content: "a."})

	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	for _, o := range outcomes {
		if !o.Succeeded {
			t.Fatalf("backend %s failed: %s", o.Backend, o.Reason)
		}
	}

	if got := windows.GetOrCreate("u1").Turns; len(got) != 1 || got[0].Question != "q?" {
		t.Fatalf("window turns = %+v", got)
	}
	msgs, err := store.ListMessages(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != transcript.RoleUser || msgs[1].Role != transcript.RoleAI {
		t.Fatalf("transcript messages = %+v, want user then ai", msgs)
	}
}

func TestCommitIsolatesLongTermFailure(t *testing.T) {
	windows := memory.NewWindows(5, time.Minute)
	longTerm := memory.NewLongTerm(brokenEmbedder{})
	store := transcript.NewInMemoryStore()
	sess := newTestSession(t, store)

	p := NewPersister(windows, longTerm, store, time.Second, nil)
	outcomes := p.Commit(context.Background(), "u1", sess.ID, "q?", Result{Content: "a."})

	if outcome(t, outcomes, BackendLongTerm).Succeeded {
		t.Fatalf("long-term outcome should fail")
	}
	if !outcome(t, outcomes, BackendWindow).Succeeded {
		t.Fatalf("window outcome should succeed despite long-term failure")
	}
	if !outcome(t, outcomes, BackendTranscript).Succeeded {
		t.Fatalf("transcript outcome should succeed despite long-term failure")
	}
	if got := len(windows.GetOrCreate("u1").Turns); got != 1 {
		t.Fatalf("window turns = %d, want 1", got)
	}
}

func TestCommitIsolatesTranscriptFailure(t *testing.T) {
	windows := memory.NewWindows(5, time.Minute)
	longTerm := memory.NewLongTerm(memory.NewHashEmbedder(32))
	inner := transcript.NewInMemoryStore()
	sess := newTestSession(t, inner)

	p := NewPersister(windows, longTerm, brokenTranscripts{Store: inner}, time.Second, nil)
	outcomes := p.Commit(context.Background(), "u1", sess.ID, "q?", Result{Content: "a."})

	if outcome(t, outcomes, BackendTranscript).Succeeded {
		t.Fatalf("transcript outcome should fail")
	}
	if !outcome(t, outcomes, BackendWindow).Succeeded {
		t.Fatalf("window outcome should succeed despite transcript failure")
	}
	if !outcome(t, outcomes, BackendLongTerm).Succeeded {
		t.Fatalf("long-term outcome should succeed despite transcript failure")
	}

	excerpts := longTerm.Retrieve(context.Background(), "u1", "q?", 1)
	if len(excerpts) != 1 {
		t.Fatalf("long-term excerpts = %d, want 1", len(excerpts))
	}
}

func TestCommitWithoutLongTermHandle(t *testing.T) {
	windows := memory.NewWindows(5, time.Minute)
	store := transcript.NewInMemoryStore()
	sess := newTestSession(t, store)

	p := NewPersister(windows, nil, store, time.Second, nil)
	outcomes := p.Commit(context.Background(), "u1", sess.ID, "q?", Result{Content: "a."})

	lt := outcome(t, outcomes, BackendLongTerm)
	if !lt.Succeeded || lt.Reason == "" {
		t.Fatalf("absent long-term handle outcome = %+v, want skipped with reason", lt)
	}
}

func TestCommitSurvivesCancelledRequestContext(t *testing.T) {
	windows := memory.NewWindows(5, time.Minute)
	store := transcript.NewInMemoryStore()
	sess := newTestSession(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // client already disconnected

	p := NewPersister(windows, memory.NewLongTerm(memory.NewHashEmbedder(32)), store, time.Second, nil)
	outcomes := p.Commit(ctx, "u1", sess.ID, "q?", Result{Content: "a."})

	for _, o := range outcomes {
		if !o.Succeeded {
			t.Fatalf("backend %s failed after client disconnect: %s", o.Backend, o.Reason)
		}
	}
}
