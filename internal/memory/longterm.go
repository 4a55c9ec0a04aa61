package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
)

// Embedder converts text to a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// LongTerm wraps an embedded vector database as the semantic recall tier.
// Every document lives in a per-user collection, so a lookup can never see
// another user's turns. Read failures degrade to an empty result; write
// failures surface as ordinary errors for the persistence fan-out to report.
type LongTerm struct {
	db          *chromem.DB
	embedder    Embedder
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	onFailure   func()
}

// SetFailureHook registers a callback fired once per degraded retrieval,
// used for observability only.
func (lt *LongTerm) SetFailureHook(hook func()) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.onFailure = hook
}

func (lt *LongTerm) failed() {
	lt.mu.RLock()
	hook := lt.onFailure
	lt.mu.RUnlock()
	if hook != nil {
		hook()
	}
}

func NewLongTerm(embedder Embedder) *LongTerm {
	return &LongTerm{
		db:          chromem.NewDB(),
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
	}
}

// Retrieve returns up to topK excerpts from the user's own history ranked by
// similarity to query. Any backend failure is logged and returns nil.
func (lt *LongTerm) Retrieve(ctx context.Context, userID, query string, topK int) []string {
	if topK <= 0 || strings.TrimSpace(query) == "" {
		return nil
	}

	col, err := lt.collection(userID)
	if err != nil {
		log.Printf("[longterm] collection for %s: %v", userID, err)
		lt.failed()
		return nil
	}

	embedding, err := lt.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("[longterm] embed query: %v", err)
		lt.failed()
		return nil
	}

	// chromem rejects nResults larger than the collection, so clamp first.
	n := topK
	if count := col.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, n, map[string]string{"user_id": userID}, nil)
	if err != nil {
		log.Printf("[longterm] query for %s: %v", userID, err)
		lt.failed()
		return nil
	}

	excerpts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Metadata["user_id"] != userID {
			// Belt and braces on top of per-user collections.
			continue
		}
		excerpts = append(excerpts, r.Content)
	}
	return excerpts
}

// Append stores one exchange tagged with the owning user and a timestamp.
func (lt *LongTerm) Append(ctx context.Context, userID, question, answer string) error {
	col, err := lt.collection(userID)
	if err != nil {
		return err
	}

	content := fmt.Sprintf("Q: %s\nA: %s", question, answer)
	embedding, err := lt.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed exchange: %w", err)
	}

	doc := chromem.Document{
		ID:        uuid.NewString(),
		Content:   content,
		Embedding: embedding,
		Metadata: map[string]string{
			"user_id":    userID,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (lt *LongTerm) collection(userID string) (*chromem.Collection, error) {
	lt.mu.RLock()
	col, ok := lt.collections[userID]
	lt.mu.RUnlock()
	if ok {
		return col, nil
	}

	lt.mu.Lock()
	defer lt.mu.Unlock()
	if col, ok := lt.collections[userID]; ok {
		return col, nil
	}

	col, err := lt.db.CreateCollection("user_"+userID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	lt.collections[userID] = col
	return col, nil
}
