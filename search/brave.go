package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smhanov/sleuth"
)

// BraveEndpoint is the Brave web search API.
const BraveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// braveKeyGate serialises requests per API key. All Brave instances sharing
// a key share one gate, matching Brave's limit of 1 req/s per key.
type braveKeyGate struct {
	mu      sync.Mutex
	readyAt time.Time
}

var (
	braveGatesMu sync.Mutex                   //nolint:gochecknoglobals
	braveGates   = map[string]*braveKeyGate{} //nolint:gochecknoglobals
)

func braveGateFor(apiKey string) *braveKeyGate {
	braveGatesMu.Lock()
	defer braveGatesMu.Unlock()
	g, ok := braveGates[apiKey]
	if !ok {
		g = &braveKeyGate{}
		braveGates[apiKey] = g
	}
	return g
}

// waitAndLock blocks until the caller may issue a request, then returns
// with the gate locked. The caller must call unlock after the response.
func (g *braveKeyGate) waitAndLock(ctx context.Context) error {
	g.mu.Lock()
	if wait := time.Until(g.readyAt); wait > 0 {
		g.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		g.mu.Lock()
	}
	return nil
}

// unlock sets the minimum delay before the next request and releases the gate.
func (g *braveKeyGate) unlock(delay time.Duration) {
	g.readyAt = time.Now().Add(delay)
	g.mu.Unlock()
}

// Brave uses the Brave Search API. An API key is required via X-Subscription-Token.
type Brave struct {
	APIKey   string
	Endpoint string
	client   *http.Client
}

// NewBrave constructs a Brave search provider.
func NewBrave(apiKey string) *Brave {
	return NewBraveWithClient(apiKey, &http.Client{Timeout: 10 * time.Second})
}

// NewBraveWithClient constructs a Brave search provider using the supplied HTTP client.
func NewBraveWithClient(apiKey string, client *http.Client) *Brave {
	return &Brave{APIKey: apiKey, Endpoint: BraveEndpoint, client: client}
}

// Search executes a Brave query. Concurrent calls sharing the same API key
// are serialised through a shared per-key gate.
func (b *Brave) Search(ctx context.Context, query string, max int) ([]sleuth.SearchResult, error) {
	if strings.TrimSpace(b.APIKey) == "" {
		return nil, &sleuth.ProviderError{Provider: "brave", Err: fmt.Errorf("%w: API key is missing", sleuth.ErrUnauthorized)}
	}
	limit := limitOf(max)
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(limit))
	endpoint := b.Endpoint + "?" + params.Encode()

	gate := braveGateFor(b.APIKey)

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		if err := gate.waitAndLock(ctx); err != nil {
			return nil, &sleuth.ProviderError{Provider: "brave", Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			gate.unlock(0)
			return nil, &sleuth.ProviderError{Provider: "brave", Err: err}
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Subscription-Token", b.APIKey)

		resp, err = b.client.Do(req)
		if err != nil {
			gate.unlock(1 * time.Second)
			return nil, transportError(ctx, "brave", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			gate.unlock(braveNextDelay(resp.Header))
			break
		}

		wait := braveRetryDelay(resp.Header)
		resp.Body.Close()
		gate.unlock(wait)
		if attempt >= maxRateLimitRetries {
			return nil, statusError("brave", http.StatusTooManyRequests)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("brave", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &sleuth.ProviderError{Provider: "brave", Err: fmt.Errorf("decode response: %w", err)}
	}

	results := make([]sleuth.SearchResult, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		results = append(results, sleuth.SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Description})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// braveRetryDelay reads X-RateLimit-Reset ("1, 1419704": per-second and
// per-month windows) and returns the smallest reset, or 1s.
func braveRetryDelay(h http.Header) time.Duration {
	raw := h.Get("X-RateLimit-Reset")
	if raw == "" {
		return 1 * time.Second
	}
	minReset := -1
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			continue
		}
		if minReset < 0 || n < minReset {
			minReset = n
		}
	}
	if minReset <= 0 {
		return 1 * time.Second
	}
	return time.Duration(minReset) * time.Second
}

// braveNextDelay holds the gate for a second when the per-second bucket in
// X-RateLimit-Remaining is spent or the header is absent.
func braveNextDelay(h http.Header) time.Duration {
	raw := h.Get("X-RateLimit-Remaining")
	if raw == "" {
		return 1 * time.Second
	}
	parts := strings.SplitN(raw, ",", 2)
	perSecond, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || perSecond <= 0 {
		return 1 * time.Second
	}
	return 0
}
