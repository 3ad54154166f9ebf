package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/smhanov/sleuth"
)

const (
	maxFetchBytes = 32 * 1024 // 32KB limit to avoid overwhelming LLM context
	maxBodyBytes  = 4 << 20
)

// skipped elements carry navigation chrome, not documentation.
var skipped = map[string]bool{ //nolint:gochecknoglobals
	"script": true, "style": true, "nav": true, "header": true,
	"footer": true, "noscript": true, "svg": true, "template": true,
}

// HTTPFetcher retrieves documents over HTTP and reduces HTML to text.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTP creates a HTTP fetcher with a modest timeout.
func NewHTTP() *HTTPFetcher {
	return NewHTTPWithClient(&http.Client{Timeout: 15 * time.Second})
}

// NewHTTPWithClient creates a fetcher using the supplied HTTP client.
func NewHTTPWithClient(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{
		client:    client,
		userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Fetch downloads url. Any non-2xx status yields OK=false and a nil error;
// errors are reserved for requests that got no response.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (sleuth.FetchResult, error) {
	trimmed := strings.TrimSpace(url)
	res := sleuth.FetchResult{URL: trimmed}
	if trimmed == "" {
		return res, errors.New("fetch url is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return res, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return res, wrapTransport(ctx, err)
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	res.ContentType = resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return res, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return res, wrapTransport(ctx, err)
	}

	var text string
	if isHTML(res.ContentType, body) {
		text, err = extractText(body)
		if err != nil {
			return res, fmt.Errorf("extract text: %w", err)
		}
	} else {
		text = strings.TrimSpace(string(body))
	}
	if len(text) > maxFetchBytes {
		text = sleuth.TruncateUTF8(text, maxFetchBytes) + "\n[TRUNCATED]"
	}
	res.OK = true
	res.Content = text
	return res, nil
}

func wrapTransport(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", sleuth.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", sleuth.ErrUnreachable, err)
}

func isHTML(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") {
		return true
	}
	if ct != "" {
		return false
	}
	return strings.Contains(http.DetectContentType(body), "html")
}

// extractText returns the visible text of an HTML document, one text run
// per line, skipping script, style, and page chrome.
func extractText(body []byte) (string, error) {
	var text strings.Builder
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	depth := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(tokenizer.Err(), io.EOF) {
				return strings.TrimSpace(text.String()), nil
			}
			return "", tokenizer.Err()
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skipped[string(name)] {
				depth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skipped[string(name)] && depth > 0 {
				depth--
			}
		case html.TextToken:
			if depth > 0 {
				continue
			}
			trimmed := bytes.Join(bytes.Fields(tokenizer.Text()), []byte(" "))
			if len(trimmed) > 0 {
				text.Write(trimmed)
				text.WriteByte('\n')
			}
		}
	}
}
