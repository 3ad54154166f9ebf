package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smhanov/sleuth"
)

// TavilyEndpoint is the Tavily search API.
const TavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	APIKey   string
	Endpoint string
	// Depth controls Tavily's search_depth parameter (basic or advanced).
	Depth  string
	client *http.Client
}

// NewTavily constructs a Tavily search provider.
func NewTavily(apiKey string, depth string) *Tavily {
	return NewTavilyWithClient(apiKey, depth, &http.Client{Timeout: 10 * time.Second})
}

// NewTavilyWithClient constructs a Tavily search provider using the supplied HTTP client.
func NewTavilyWithClient(apiKey string, depth string, client *http.Client) *Tavily {
	if depth == "" {
		depth = "basic"
	}
	return &Tavily{APIKey: apiKey, Endpoint: TavilyEndpoint, Depth: depth, client: client}
}

// Search posts a query to Tavily.
func (t *Tavily) Search(ctx context.Context, query string, max int) ([]sleuth.SearchResult, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, &sleuth.ProviderError{Provider: "tavily", Err: fmt.Errorf("%w: API key is missing", sleuth.ErrUnauthorized)}
	}
	limit := limitOf(max)

	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"api_key":      t.APIKey,
		"search_depth": t.Depth,
		"max_results":  limit,
	})
	if err != nil {
		return nil, &sleuth.ProviderError{Provider: "tavily", Err: err}
	}

	resp, err := doWithBackoff(ctx, t.client, "tavily", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &sleuth.ProviderError{Provider: "tavily", Err: fmt.Errorf("decode response: %w", err)}
	}

	results := make([]sleuth.SearchResult, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, sleuth.SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
