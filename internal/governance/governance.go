// Package governance exposes the governance collaborator's emergency-pause
// state to the engine. The governance workflow itself (certificate issuance,
// validation, revocation) lives outside this service; only the pause flag is
// consumed here.
package governance

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Pauser reports whether governance has engaged the market-wide emergency
// pause. Checked by the clearing scheduler before every pass and by order
// submission and admin parameter updates.
type Pauser interface {
	IsEmergencyPaused(ctx context.Context) bool
}

// Static is a Pauser with a fixed, settable state. Used in tests and when no
// governance endpoint is configured.
type Static struct {
	mu     sync.RWMutex
	paused bool
}

// NewStatic creates a Static pauser in the given state.
func NewStatic(paused bool) *Static {
	return &Static{paused: paused}
}

// IsEmergencyPaused returns the current state.
func (s *Static) IsEmergencyPaused(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// SetPaused updates the state.
func (s *Static) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

// HTTPClient polls a governance endpoint returning
// {"emergency_paused": bool} and caches the answer briefly so a clearing
// pass never hammers the collaborator. An unreachable endpoint reads as
// paused: clearing must not proceed when the pause state is unknown.
type HTTPClient struct {
	url    string
	client *http.Client

	mu        sync.Mutex
	cached    bool
	fetchedAt time.Time
	cacheTTL  time.Duration
}

// NewHTTPClient creates an HTTPClient for the given endpoint URL.
func NewHTTPClient(url string, timeout, cacheTTL time.Duration) *HTTPClient {
	return &HTTPClient{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		cacheTTL: cacheTTL,
	}
}

// IsEmergencyPaused queries the governance endpoint, serving a cached value
// when it is fresh enough. The mutex only guards the cache fields; the fetch
// itself runs unlocked so a slow governance round-trip never queues other
// callers behind it.
func (c *HTTPClient) IsEmergencyPaused(ctx context.Context) bool {
	c.mu.Lock()
	if time.Since(c.fetchedAt) < c.cacheTTL {
		cached := c.cached
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	paused := c.fetch(ctx)

	c.mu.Lock()
	c.cached = paused
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return paused
}

func (c *HTTPClient) fetch(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return true
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return true
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return true
	}

	var body struct {
		EmergencyPaused bool `json:"emergency_paused"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return true
	}
	return body.EmergencyPaused
}
