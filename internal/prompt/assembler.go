package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dataflowhq/advisor/internal/market"
	"github.com/dataflowhq/advisor/internal/memory"
)

// maxSnapshotRows bounds prompt size; rows past the cap are dropped, not
// summarized, because the snapshot arrives ordered by priority.
const maxSnapshotRows = 50

// SystemPrompt instructs the model to answer as a financial advisor and to
// close with a single parsable JSON object.
const SystemPrompt = `You are an intelligent, helpful AI assistant with deep expertise in financial markets. You can also handle general-purpose queries beyond finance with clarity and friendliness.

Only use the user's financial profile or market data when relevant to the question. If the user asks a casual or unrelated question, respond naturally without referencing their profile or finance.

Always return your answer as a single valid JSON object with these keys:
"content": a natural language explanation (always required, always a string),
"suggestions": short follow-up questions (include only if needed),
"analysis": {"rating": "Buy"|"Sell"|"Hold", "currentPrice": "...", "targetPrice": "...", "upside": "..."} (include only when evaluating a specific stock).

If market data is unavailable, mention this in your response but still provide helpful general advice.
NEVER wrap the JSON in backticks. NEVER include explanation outside the JSON.`

// Context is the assembled model input: one bounded text block plus the
// short-term history kept as structured turns for models that accept them.
type Context struct {
	Question string
	Text     string
	History  []memory.Turn
}

// Build assembles the prompt in a fixed section order: question, profile,
// market snapshot, long-term excerpts. Missing optional inputs simply omit
// their section; Build never fails.
func Build(question string, profile map[string]string, snapshot []market.Stock, shortTerm []memory.Turn, longTerm []string) Context {
	var b strings.Builder

	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n")

	if len(profile) > 0 {
		// encoding/json sorts map keys, so the section is deterministic.
		if raw, err := json.Marshal(profile); err == nil {
			b.WriteString("\nUser Profile:\n")
			b.Write(raw)
			b.WriteString("\n")
		}
	}

	if len(snapshot) > 0 {
		b.WriteString("\nMarket Data:\n")
		rows := snapshot
		if len(rows) > maxSnapshotRows {
			rows = rows[:maxSnapshotRows]
		}
		for _, s := range rows {
			fmt.Fprintf(&b, "%s (%s) - Open: %.2f, Close: %.2f, Change: %.2f, Volume: %.0f\n",
				s.Symbol, s.Name, s.Open, s.Close, s.Change, s.Volume)
		}
	}

	if hasContent(longTerm) {
		b.WriteString("\nRelevant Past Conversations:\n")
		for _, excerpt := range longTerm {
			if strings.TrimSpace(excerpt) == "" {
				continue
			}
			b.WriteString(excerpt)
			b.WriteString("\n")
		}
	}

	return Context{
		Question: question,
		Text:     b.String(),
		History:  shortTerm,
	}
}

func hasContent(excerpts []string) bool {
	for _, e := range excerpts {
		if strings.TrimSpace(e) != "" {
			return true
		}
	}
	return false
}
