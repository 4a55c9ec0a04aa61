package advisor

import (
	"encoding/json"
	"strings"
)

// Analysis is the optional stock evaluation block of a structured answer.
type Analysis struct {
	Rating       string `json:"rating"`
	CurrentPrice string `json:"currentPrice"`
	TargetPrice  string `json:"targetPrice"`
	Upside       string `json:"upside"`
}

// Result is the structured outcome of one generation. Content is always
// present; Suggestions may be empty; Analysis is nil unless a valid rating
// was produced.
type Result struct {
	Content     string    `json:"content"`
	Suggestions []string  `json:"suggestions"`
	Analysis    *Analysis `json:"analysis"`
}

// Extract parses the accumulated model text into a Result. It looks for one
// trailing structured block between the first '{' and the final '}'; any
// decode failure falls back to the raw text. Extract never fails.
func Extract(fullText string) Result {
	fallback := Result{
		Content:     fullText,
		Suggestions: []string{},
	}

	start := strings.Index(fullText, "{")
	end := strings.LastIndex(fullText, "}")
	if start < 0 || end <= start {
		return fallback
	}

	var decoded struct {
		Content     *string         `json:"content"`
		Suggestions []string        `json:"suggestions"`
		Analysis    json.RawMessage `json:"analysis"`
	}
	if err := json.Unmarshal([]byte(fullText[start:end+1]), &decoded); err != nil {
		return fallback
	}

	result := Result{
		Content:     fullText,
		Suggestions: []string{},
	}
	if decoded.Content != nil {
		result.Content = *decoded.Content
	}
	if decoded.Suggestions != nil {
		result.Suggestions = decoded.Suggestions
	}
	result.Analysis = decodeAnalysis(decoded.Analysis)
	return result
}

// decodeAnalysis drops a malformed or invalidly rated analysis block without
// rejecting the rest of the result.
func decodeAnalysis(raw json.RawMessage) *Analysis {
	if len(raw) == 0 {
		return nil
	}
	var a Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil
	}
	switch a.Rating {
	case "Buy", "Sell", "Hold":
		return &a
	default:
		return nil
	}
}
