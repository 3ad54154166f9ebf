package sleuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// SearchToolName is the registered name of the WebSearchTool.
	SearchToolName = "search_web_for_documentation"
	// DefaultSearchLimit caps the URLs returned by one search.
	DefaultSearchLimit = 4
)

// WebSearchTool bridges formulated queries to a SearchProvider.
type WebSearchTool struct {
	provider   SearchProvider
	formulator *QueryFormulator
	limit      int
	logger     *slog.Logger
}

// SearchToolOption configures a WebSearchTool.
type SearchToolOption func(*WebSearchTool)

// WithFormulator overrides the query formulator.
func WithFormulator(f *QueryFormulator) SearchToolOption {
	return func(t *WebSearchTool) {
		if f != nil {
			t.formulator = f
		}
	}
}

// WithSearchLimit sets the upper bound on returned URLs.
func WithSearchLimit(n int) SearchToolOption {
	return func(t *WebSearchTool) {
		if n > 0 {
			t.limit = n
		}
	}
}

// WithSearchLogger sets the logger.
func WithSearchLogger(l *slog.Logger) SearchToolOption {
	return func(t *WebSearchTool) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewWebSearchTool wraps provider.
func NewWebSearchTool(provider SearchProvider, opts ...SearchToolOption) *WebSearchTool {
	t := &WebSearchTool{
		provider:   provider,
		formulator: NewQueryFormulator(nil),
		limit:      DefaultSearchLimit,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Descriptor implements Tool.
func (t *WebSearchTool) Descriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        SearchToolName,
		Description: "Searches web for websites that may contain relevant documentation. Returns a list of URLs.",
		Parameters: Schema{
			Type: "object",
			Properties: map[string]Property{
				"search_string": {Type: "string", Description: "Topic to search documentation for."},
				"max_results":   {Type: "integer", Description: fmt.Sprintf("Maximum number of URLs to return (at most %d).", t.limit)},
			},
			Required: []string{"search_string"},
		},
	}
}

// Search formulates one query for subject and returns up to maxResults
// distinct URLs in provider order. Zero results is an empty slice, not an
// error; provider failures are returned as *ToolError.
func (t *WebSearchTool) Search(ctx context.Context, subject string, maxResults int) ([]string, error) {
	if t.provider == nil {
		return nil, &ToolError{Tool: SearchToolName, Kind: ToolErrorInternal, Err: errors.New("no search provider configured")}
	}
	limit := t.limit
	if maxResults > 0 && maxResults < limit {
		limit = maxResults
	}
	query := t.formulator.Formulate(subject)

	attrs := []any{"component", "search", "query", query}
	if info, ok := CallInfoFrom(ctx); ok {
		attrs = append(attrs, "run_id", info.RunID, "try", info.Attempt)
	}
	t.logger.InfoContext(ctx, "web search", attrs...)

	results, err := t.provider.Search(ctx, query, limit)
	if err != nil {
		return nil, NewToolError(SearchToolName, err)
	}

	urls := make([]string, 0, limit)
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		u := strings.TrimSpace(r.URL)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
		if len(urls) >= limit {
			break
		}
	}
	t.logger.DebugContext(ctx, "web search results", append(attrs, "count", len(urls))...)
	return urls, nil
}

// Call implements Tool.
func (t *WebSearchTool) Call(ctx context.Context, args Arguments) (ToolOutput, error) {
	urls, err := t.Search(ctx, args.String("search_string"), args.Int("max_results", 0))
	if err != nil {
		return ToolOutput{}, err
	}
	if len(urls) == 0 {
		return ToolOutput{Text: "no results; try a different search string", Negative: true}, nil
	}
	return ToolOutput{Text: strings.Join(urls, "\n"), URLs: urls}, nil
}
