package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// Stock is one row of the market snapshot.
type Stock struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"securityName"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	Change float64 `json:"change"`
	Volume float64 `json:"dailyVolume"`
}

// Cache serves a possibly stale market snapshot from an upstream stocks API.
// Consumers must tolerate an empty snapshot; a failed refresh keeps whatever
// was cached before and never surfaces an error.
type Cache struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu        sync.RWMutex
	stocks    []Stock
	fetchedAt time.Time
}

func NewCache(url string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{
		url: url,
		ttl: ttl,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Snapshot returns the cached stock list, refreshing first when it is stale.
func (c *Cache) Snapshot(ctx context.Context) []Stock {
	c.mu.RLock()
	fresh := time.Since(c.fetchedAt) < c.ttl && len(c.stocks) > 0
	stocks := c.stocks
	c.mu.RUnlock()

	if fresh {
		return stocks
	}
	return c.Refresh(ctx)
}

// Refresh fetches the upstream stock list. On failure the previous snapshot
// is returned unchanged.
func (c *Cache) Refresh(ctx context.Context) []Stock {
	stocks, err := c.fetch(ctx)
	if err != nil {
		log.Printf("[market] refresh failed, serving cached snapshot: %v", err)
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.stocks
	}

	c.mu.Lock()
	c.stocks = stocks
	c.fetchedAt = time.Now().UTC()
	c.mu.Unlock()

	log.Printf("[market] cached %d stocks", len(stocks))
	return stocks
}

// StartRefresher refreshes the cache on the configured cadence until ctx is
// cancelled.
func (c *Cache) StartRefresher(ctx context.Context) {
	ticker := time.NewTicker(c.ttl)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Refresh(ctx)
			}
		}
	}()
}

func (c *Cache) fetch(ctx context.Context) ([]Stock, error) {
	if c.url == "" {
		return nil, fmt.Errorf("no stocks API configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stocks: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return nil, fmt.Errorf("stocks API status %d: %s", res.StatusCode, string(body))
	}

	var payload struct {
		Data []Stock `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode stocks: %w", err)
	}
	return payload.Data, nil
}

// Page slices a snapshot for the paginated listing endpoint.
func Page(stocks []Stock, page, limit int) []Stock {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	start := (page - 1) * limit
	if start >= len(stocks) {
		return []Stock{}
	}
	end := start + limit
	if end > len(stocks) {
		end = len(stocks)
	}
	return stocks[start:end]
}
