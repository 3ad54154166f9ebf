// Package search provides search provider implementations for the sleuth agent.
//
// Available providers:
//
//   - DuckDuckGo: Free, no API key required (scrapes lite.duckduckgo.com)
//   - Brave: Requires API key via X-Subscription-Token header
//   - Tavily: Requires API key, supports basic/advanced depth modes
//   - Bing: Requires API key via Ocp-Apim-Subscription-Key header
//
// Every provider returns at most max results (5 when max <= 0). Failures
// are *sleuth.ProviderError values wrapping sleuth.ErrUnauthorized for
// 401/403, sleuth.ErrRateLimited once 429 retries run out, and
// sleuth.ErrUnreachable or sleuth.ErrTimeout for transport failures.
//
// # Example
//
//	provider := search.NewBing("your-api-key")
//	results, err := provider.Search(ctx, "href to vips_thumbnail file", 4)
//
// # Custom Providers
//
// Implement the sleuth.SearchProvider interface to add your own backend:
//
//	type SearchProvider interface {
//	    Search(ctx context.Context, query string, max int) ([]sleuth.SearchResult, error)
//	}
package search
