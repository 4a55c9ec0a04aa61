package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dataflowhq/advisor/internal/market"
	"github.com/dataflowhq/advisor/internal/memory"
)

func TestBuildIncludesAllSectionsInOrder(t *testing.T) {
	snapshot := []market.Stock{
		{Symbol: "AAPL", Name: "Apple Inc", Open: 210.5, Close: 214.2, Change: 1.7, Volume: 1000000},
	}
	history := []memory.Turn{{Question: "earlier q", Answer: "earlier a"}}

	pc := Build("What's AAPL's outlook?", map[string]string{"risk": "balanced"}, snapshot, history, []string{"Q: old\nA: context"})

	for _, want := range []string{"AAPL", `"risk":"balanced"`, "Relevant Past Conversations"} {
		if !strings.Contains(pc.Text, want) {
			t.Fatalf("prompt missing %q:\n%s", want, pc.Text)
		}
	}

	qIdx := strings.Index(pc.Text, "Question:")
	pIdx := strings.Index(pc.Text, "User Profile:")
	mIdx := strings.Index(pc.Text, "Market Data:")
	lIdx := strings.Index(pc.Text, "Relevant Past Conversations:")
	if !(qIdx < pIdx && pIdx < mIdx && mIdx < lIdx) {
		t.Fatalf("section order wrong: q=%d p=%d m=%d l=%d", qIdx, pIdx, mIdx, lIdx)
	}

	if len(pc.History) != 1 || pc.History[0].Question != "earlier q" {
		t.Fatalf("history not passed alongside: %+v", pc.History)
	}
	if strings.Contains(pc.Text, "earlier q") {
		t.Fatalf("short-term history must not be flattened into the text")
	}
}

func TestBuildOmitsEmptySections(t *testing.T) {
	pc := Build("Hi", nil, nil, nil, nil)

	if !strings.Contains(pc.Text, "Hi") {
		t.Fatalf("prompt missing question:\n%s", pc.Text)
	}
	for _, absent := range []string{"User Profile:", "Market Data:", "Relevant Past Conversations:"} {
		if strings.Contains(pc.Text, absent) {
			t.Fatalf("prompt contains %q for empty input:\n%s", absent, pc.Text)
		}
	}
}

func TestBuildOmitsBlankExcerpts(t *testing.T) {
	pc := Build("Hi", nil, nil, nil, []string{"   ", "\n"})
	if strings.Contains(pc.Text, "Relevant Past Conversations:") {
		t.Fatalf("blank excerpts should omit the section:\n%s", pc.Text)
	}
}

func TestBuildTruncatesSnapshotToFifty(t *testing.T) {
	snapshot := make([]market.Stock, 80)
	for i := range snapshot {
		snapshot[i].Symbol = fmt.Sprintf("SYM%02d", i)
	}

	pc := Build("market overview", nil, snapshot, nil, nil)

	if !strings.Contains(pc.Text, "SYM49") {
		t.Fatalf("row 49 missing from prompt")
	}
	if strings.Contains(pc.Text, "SYM50") {
		t.Fatalf("row 50 should be truncated")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	profile := map[string]string{"risk": "balanced", "horizon": "long", "age": "34"}
	a := Build("q", profile, nil, nil, nil)
	b := Build("q", profile, nil, nil, nil)
	if a.Text != b.Text {
		t.Fatalf("prompt text differs across identical builds")
	}
}
