package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smhanov/sleuth"
)

// BingEndpoint is the Bing Web Search v7 API.
const BingEndpoint = "https://api.bing.microsoft.com/v7.0/search"

// Bing calls the Bing Web Search API with an Ocp-Apim-Subscription-Key.
type Bing struct {
	APIKey   string
	Endpoint string
	// Market is passed as mkt when set, e.g. "en-US".
	Market string
	client *http.Client
}

// NewBing constructs a Bing search provider.
func NewBing(apiKey string) *Bing {
	return NewBingWithClient(apiKey, &http.Client{Timeout: 10 * time.Second})
}

// NewBingWithClient constructs a Bing search provider using the supplied HTTP client.
func NewBingWithClient(apiKey string, client *http.Client) *Bing {
	return &Bing{APIKey: apiKey, Endpoint: BingEndpoint, client: client}
}

// Search queries Bing for web pages.
func (b *Bing) Search(ctx context.Context, query string, max int) ([]sleuth.SearchResult, error) {
	if strings.TrimSpace(b.APIKey) == "" {
		return nil, &sleuth.ProviderError{Provider: "bing", Err: fmt.Errorf("%w: API key is missing", sleuth.ErrUnauthorized)}
	}
	limit := limitOf(max)
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(limit))
	params.Set("responseFilter", "Webpages")
	if b.Market != "" {
		params.Set("mkt", b.Market)
	}
	endpoint := b.Endpoint + "?" + params.Encode()

	resp, err := doWithBackoff(ctx, b.client, "bing", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", b.APIKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		WebPages struct {
			Value []struct {
				Name    string `json:"name"`
				URL     string `json:"url"`
				Snippet string `json:"snippet"`
			} `json:"value"`
		} `json:"webPages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &sleuth.ProviderError{Provider: "bing", Err: fmt.Errorf("decode response: %w", err)}
	}

	results := make([]sleuth.SearchResult, 0, len(payload.WebPages.Value))
	for _, v := range payload.WebPages.Value {
		results = append(results, sleuth.SearchResult{Title: v.Name, URL: v.URL, Snippet: v.Snippet})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
