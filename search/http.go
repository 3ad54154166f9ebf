package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/smhanov/sleuth"
)

const (
	// defaultLimit applies when the caller passes max <= 0.
	defaultLimit = 5
	// maxRateLimitRetries bounds the 429 backoff loop before the provider
	// reports ErrRateLimited.
	maxRateLimitRetries = 3
)

// retryBaseDelay is the first 429 backoff; it doubles up to maxRetryDelay.
var (
	retryBaseDelay = 1 * time.Second  //nolint:gochecknoglobals
	maxRetryDelay  = 30 * time.Second //nolint:gochecknoglobals
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func limitOf(max int) int {
	if max <= 0 {
		return defaultLimit
	}
	return max
}

// transportError wraps a client.Do failure so that callers can tell
// network trouble and cancellation apart from provider refusals.
func transportError(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &sleuth.ProviderError{Provider: provider, Err: ctxErr}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &sleuth.ProviderError{Provider: provider, Err: fmt.Errorf("%w: %v", sleuth.ErrTimeout, err)}
	}
	return &sleuth.ProviderError{Provider: provider, Err: fmt.Errorf("%w: %v", sleuth.ErrUnreachable, err)}
}

// statusError maps a non-200 response status to a ProviderError.
func statusError(provider string, code int) error {
	var err error
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		err = sleuth.ErrUnauthorized
	case http.StatusTooManyRequests:
		err = sleuth.ErrRateLimited
	default:
		err = fmt.Errorf("unexpected status %s", http.StatusText(code))
	}
	return &sleuth.ProviderError{Provider: provider, StatusCode: code, Err: err}
}

// doWithBackoff sends the request built by newReq, retrying 429 responses
// with doubling delays. The returned response is 200 OK; every other
// outcome is an error.
func doWithBackoff(ctx context.Context, client *http.Client, provider string, newReq func() (*http.Request, error)) (*http.Response, error) {
	delay := retryBaseDelay
	for attempt := 0; ; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, &sleuth.ProviderError{Provider: provider, Err: err}
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, transportError(ctx, provider, err)
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRateLimitRetries {
			return nil, statusError(provider, resp.StatusCode)
		}

		select {
		case <-ctx.Done():
			return nil, &sleuth.ProviderError{Provider: provider, Err: ctx.Err()}
		case <-time.After(delay):
		}
		if delay < maxRetryDelay {
			delay *= 2
		}
	}
}
