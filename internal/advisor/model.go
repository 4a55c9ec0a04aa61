package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dataflowhq/advisor/internal/memory"
)

// GenerateRequest is the normalized request sent to the model service.
type GenerateRequest struct {
	UserID    string        `json:"user_id"`
	SessionID string        `json:"session_id"`
	System    string        `json:"system"`
	Prompt    string        `json:"prompt"`
	History   []memory.Turn `json:"history,omitempty"`
}

// GenerateResponse is the final response after streaming deltas.
type GenerateResponse struct {
	Text string `json:"text"`
}

// DeltaHandler receives streaming text fragments. Returning an error stops
// the upstream stream.
type DeltaHandler func(delta string) error

// ModelAdapter bridges the advisory core with an opaque token-emitting
// model service.
type ModelAdapter interface {
	StreamGenerate(ctx context.Context, req GenerateRequest, onDelta DeltaHandler) (GenerateResponse, error)
}

// AdapterConfig controls adapter construction.
type AdapterConfig struct {
	Mode string
	URL  string
}

func NewAdapter(cfg AdapterConfig) (ModelAdapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.URL) != "" {
			return NewHTTPAdapter(cfg.URL), nil
		}
		return NewMockAdapter(), nil
	case "http":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, errors.New("model HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.URL), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported model adapter mode %q", cfg.Mode)
	}
}
