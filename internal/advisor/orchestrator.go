package advisor

import (
	"context"
	"strings"
	"time"

	"github.com/dataflowhq/advisor/internal/observability"
	"github.com/dataflowhq/advisor/internal/prompt"
)

// Orchestrator drives one generation stream: it relays every delta to the
// caller as produced, accumulates the full text in parallel, and contains
// upstream failures. A cancelled ctx stops consumption at the next delta.
type Orchestrator struct {
	adapter ModelAdapter
	metrics *observability.Metrics
}

func NewOrchestrator(adapter ModelAdapter, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{adapter: adapter, metrics: metrics}
}

// Stream invokes the model with the assembled context and returns the full
// accumulated text. On mid-stream failure the partial text is returned
// together with the error; the caller decides how to report it.
func (o *Orchestrator) Stream(ctx context.Context, userID, sessionID string, pc prompt.Context, relay DeltaHandler) (string, error) {
	req := GenerateRequest{
		UserID:    userID,
		SessionID: sessionID,
		System:    prompt.SystemPrompt,
		Prompt:    pc.Text,
		History:   pc.History,
	}

	var full strings.Builder
	started := time.Now()
	first := true

	_, err := o.adapter.StreamGenerate(ctx, req, func(delta string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		full.WriteString(delta)
		if o.metrics != nil {
			if first {
				o.metrics.ObserveFirstDeltaLatency(time.Since(started))
				first = false
			}
			o.metrics.StreamDeltas.Inc()
		}

		if relay != nil {
			return relay(delta)
		}
		return nil
	})
	if err != nil {
		return full.String(), err
	}
	return full.String(), nil
}
