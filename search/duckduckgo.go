package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/smhanov/sleuth"
)

// DuckDuckGoEndpoint is the lite HTML interface, which is stable to scrape.
const DuckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"

// ddgRateLimit enforces 1 query per second across all DuckDuckGo instances.
var ddgRateLimit struct { //nolint:gochecknoglobals
	mu   sync.Mutex
	last time.Time
}

// DuckDuckGo implements a searcher using DuckDuckGo's HTML lite interface.
// No API key is required.
type DuckDuckGo struct {
	Endpoint string
	client   *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo searcher with a modest timeout.
func NewDuckDuckGo() *DuckDuckGo {
	return NewDuckDuckGoWithClient(&http.Client{Timeout: 15 * time.Second})
}

// NewDuckDuckGoWithClient creates a DuckDuckGo searcher using the supplied HTTP client.
func NewDuckDuckGoWithClient(client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{Endpoint: DuckDuckGoEndpoint, client: client}
}

// Search scrapes the DuckDuckGo lite page for results.
func (d *DuckDuckGo) Search(ctx context.Context, query string, max int) ([]sleuth.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &sleuth.ProviderError{Provider: "duckduckgo", Err: errors.New("query is empty")}
	}

	ddgRateLimit.mu.Lock()
	if wait := time.Until(ddgRateLimit.last.Add(time.Second)); wait > 0 {
		ddgRateLimit.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, &sleuth.ProviderError{Provider: "duckduckgo", Err: ctx.Err()}
		}
		ddgRateLimit.mu.Lock()
	}
	ddgRateLimit.last = time.Now()
	ddgRateLimit.mu.Unlock()

	form := url.Values{}
	form.Set("q", query)
	resp, err := doWithBackoff(ctx, d.client, "duckduckgo", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, "duckduckgo", fmt.Errorf("read response: %w", err))
	}
	return parseLiteResults(string(body), limitOf(max))
}

// parseLiteResults walks the lite page. Results are anchors with class
// "result-link"; the snippet is the next td with class "result-snippet".
func parseLiteResults(page string, limit int) ([]sleuth.SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, &sleuth.ProviderError{Provider: "duckduckgo", Err: fmt.Errorf("parse page: %w", err)}
	}

	var results []sleuth.SearchResult
	seen := map[string]bool{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= limit {
			return
		}
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result-link"):
				u := resolveRedirect(attr(n, "href"))
				if u != "" && !seen[u] {
					seen[u] = true
					results = append(results, sleuth.SearchResult{Title: nodeText(n), URL: u})
				}
				return
			case n.Data == "td" && hasClass(n, "result-snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = nodeText(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= click-tracking links and
// drops internal or relative links.
func resolveRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
