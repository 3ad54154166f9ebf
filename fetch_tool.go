package sleuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

const (
	// FetchToolName is the registered name of the DocumentFetchTool.
	FetchToolName = "download_documentation_from_web"
	// DefaultFetchTimeout bounds a single document retrieval.
	DefaultFetchTimeout = 15 * time.Second
)

// DocumentFetchTool exposes a FetchProvider to the decision-maker.
type DocumentFetchTool struct {
	fetcher FetchProvider
	timeout time.Duration
	logger  *slog.Logger
}

// NewDocumentFetchTool wraps fetcher. A non-positive timeout selects
// DefaultFetchTimeout.
func NewDocumentFetchTool(fetcher FetchProvider, timeout time.Duration, logger *slog.Logger) *DocumentFetchTool {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentFetchTool{fetcher: fetcher, timeout: timeout, logger: logger}
}

// Descriptor implements Tool.
func (t *DocumentFetchTool) Descriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        FetchToolName,
		Description: "Downloads the documentation found at web_url and reports whether it was retrieved. Retrieved documents are analyzed automatically.",
		Parameters: Schema{
			Type: "object",
			Properties: map[string]Property{
				"web_url": {Type: "string", Description: "Absolute http(s) URL of the candidate document."},
			},
			Required: []string{"web_url"},
		},
	}
}

// Fetch retrieves rawURL. Non-2xx responses yield OK=false with a nil
// error; network failures are returned as *ToolError.
func (t *DocumentFetchTool) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return FetchResult{}, &ToolError{Tool: FetchToolName, Kind: ToolErrorInvalidArguments, Err: fmt.Errorf("not an http(s) url: %q", rawURL)}
	}
	if t.fetcher == nil {
		return FetchResult{}, &ToolError{Tool: FetchToolName, Kind: ToolErrorInternal, Err: errors.New("no fetcher configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	attrs := []any{"component", "fetch", "url", rawURL}
	if info, ok := CallInfoFrom(ctx); ok {
		attrs = append(attrs, "run_id", info.RunID, "try", info.Attempt)
	}

	res, err := t.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		t.logger.WarnContext(ctx, "fetch failed", append(attrs, "error", err)...)
		return FetchResult{URL: rawURL}, NewToolError(FetchToolName, err)
	}
	if res.URL == "" {
		res.URL = rawURL
	}
	if res.OK {
		t.logger.InfoContext(ctx, "fetch succeeded", append(attrs, "status", res.Status, "bytes", len(res.Content))...)
	} else {
		t.logger.InfoContext(ctx, "fetch rejected", append(attrs, "status", res.Status)...)
	}
	return res, nil
}

// Call implements Tool.
func (t *DocumentFetchTool) Call(ctx context.Context, args Arguments) (ToolOutput, error) {
	res, err := t.Fetch(ctx, args.String("web_url"))
	if err != nil {
		return ToolOutput{}, err
	}
	if !res.OK {
		return ToolOutput{Text: fmt.Sprintf("%s returned http status %d", res.URL, res.Status), Negative: true, Fetch: &res}, nil
	}
	return ToolOutput{Text: fmt.Sprintf("retrieved %s (http %d, %d bytes)", res.URL, res.Status, len(res.Content)), Fetch: &res}, nil
}
