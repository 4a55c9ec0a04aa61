package advisor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dataflowhq/advisor/internal/memory"
	"github.com/dataflowhq/advisor/internal/observability"
	"github.com/dataflowhq/advisor/internal/transcript"
)

const (
	BackendWindow     = "window"
	BackendLongTerm   = "longterm"
	BackendTranscript = "transcript"
)

// Outcome reports one backend's result for a committed turn. Outcomes are
// for observability only and are never folded into control flow.
type Outcome struct {
	Backend   string `json:"backend"`
	Succeeded bool   `json:"succeeded"`
	Reason    string `json:"reason,omitempty"`
}

// Persister fans a finished turn out to the three memory backends. The
// writes run concurrently and independently: one failing never cancels or
// retries the others, and each is bounded by its own timeout.
type Persister struct {
	windows     *memory.Windows
	longTerm    *memory.LongTerm
	transcripts transcript.Store
	timeout     time.Duration
	metrics     *observability.Metrics
}

func NewPersister(windows *memory.Windows, longTerm *memory.LongTerm, transcripts transcript.Store, timeout time.Duration, metrics *observability.Metrics) *Persister {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Persister{
		windows:     windows,
		longTerm:    longTerm,
		transcripts: transcripts,
		timeout:     timeout,
		metrics:     metrics,
	}
}

// Commit records the turn in short-term memory, long-term memory, and the
// durable transcript. It runs after the terminal frame has been sent, so the
// fan-out detaches from the request's cancellation but keeps its values.
func (p *Persister) Commit(ctx context.Context, userID, sessionID, question string, result Result) []Outcome {
	base := context.WithoutCancel(ctx)
	now := time.Now().UTC()

	outcomes := make([]Outcome, 3)
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		outcomes[0] = p.commitWindow(userID, question, result.Content, now)
	}()
	go func() {
		defer wg.Done()
		outcomes[1] = p.commitLongTerm(base, userID, question, result.Content)
	}()
	go func() {
		defer wg.Done()
		outcomes[2] = p.commitTranscript(base, sessionID, question, result.Content, now)
	}()
	wg.Wait()

	for _, o := range outcomes {
		status := "ok"
		if !o.Succeeded {
			status = "failed"
			log.Printf("[persist] %s write failed for user=%s session=%s: %s", o.Backend, userID, sessionID, o.Reason)
		}
		if p.metrics != nil {
			p.metrics.PersistenceOutcomes.WithLabelValues(o.Backend, status).Inc()
		}
	}
	return outcomes
}

func (p *Persister) commitWindow(userID, question, answer string, now time.Time) Outcome {
	p.windows.Append(userID, memory.Turn{
		Question:  question,
		Answer:    answer,
		CreatedAt: now,
	})
	return Outcome{Backend: BackendWindow, Succeeded: true}
}

func (p *Persister) commitLongTerm(ctx context.Context, userID, question, answer string) Outcome {
	if p.longTerm == nil {
		return Outcome{Backend: BackendLongTerm, Succeeded: true, Reason: "long-term store absent"}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.longTerm.Append(ctx, userID, question, answer); err != nil {
		return Outcome{Backend: BackendLongTerm, Succeeded: false, Reason: err.Error()}
	}
	return Outcome{Backend: BackendLongTerm, Succeeded: true}
}

// commitTranscript writes the user turn, then the AI turn, then bumps the
// session's last-modified marker. Order matters for history rendering.
func (p *Persister) commitTranscript(ctx context.Context, sessionID, question, answer string, now time.Time) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	userMsg := transcript.Message{
		SessionID: sessionID,
		Role:      transcript.RoleUser,
		Content:   question,
		CreatedAt: now,
	}
	if err := p.transcripts.AppendMessage(ctx, userMsg); err != nil {
		return Outcome{Backend: BackendTranscript, Succeeded: false, Reason: err.Error()}
	}

	aiMsg := transcript.Message{
		SessionID: sessionID,
		Role:      transcript.RoleAI,
		Content:   answer,
		CreatedAt: now.Add(time.Millisecond),
	}
	if err := p.transcripts.AppendMessage(ctx, aiMsg); err != nil {
		return Outcome{Backend: BackendTranscript, Succeeded: false, Reason: err.Error()}
	}

	if err := p.transcripts.TouchSession(ctx, sessionID); err != nil {
		return Outcome{Backend: BackendTranscript, Succeeded: false, Reason: err.Error()}
	}
	return Outcome{Backend: BackendTranscript, Succeeded: true}
}
