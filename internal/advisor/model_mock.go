package advisor

import (
	"context"
	"encoding/json"
	"strings"
)

// MockAdapter provides deterministic local replies when no model service is
// configured. It emits word-sized deltas so the streaming path behaves like
// the real thing.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) StreamGenerate(ctx context.Context, req GenerateRequest, onDelta DeltaHandler) (GenerateResponse, error) {
	text := buildMockReply(req)

	var out strings.Builder
	for _, delta := range splitDeltas(text) {
		select {
		case <-ctx.Done():
			return GenerateResponse{Text: out.String()}, ctx.Err()
		default:
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return GenerateResponse{Text: out.String()}, err
			}
		}
	}
	return GenerateResponse{Text: out.String()}, nil
}

func buildMockReply(req GenerateRequest) string {
	question := ""
	lines := strings.Split(req.Prompt, "\n")
	for i, line := range lines {
		// The assembled prompt opens with a "Question:" block.
		if strings.TrimSpace(line) == "Question:" && i+1 < len(lines) {
			question = strings.TrimSpace(lines[i+1])
			break
		}
	}
	if question == "" {
		question = strings.TrimSpace(req.Prompt)
	}
	if question == "" {
		question = "your question"
	}

	content := "I don't have a live model behind me right now, so treat this as general guidance on: " + question
	if len(req.History) > 0 {
		content += " (continuing our earlier conversation)"
	}

	reply := map[string]any{
		"content":     content,
		"suggestions": []string{"What is my risk exposure?", "Show me today's top movers"},
	}
	raw, err := json.Marshal(reply)
	if err != nil {
		return content
	}
	return string(raw)
}

func splitDeltas(text string) []string {
	const chunk = 12
	var deltas []string
	for len(text) > chunk {
		deltas = append(deltas, text[:chunk])
		text = text[chunk:]
	}
	if text != "" {
		deltas = append(deltas, text)
	}
	return deltas
}
