// Package llm adapts hosted chat models to the sleuth interfaces. Both
// adapters implement sleuth.DecisionMaker with native tool calling and
// sleuth.LLMProvider for the content analyzer.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/smhanov/sleuth"
)

const (
	// DefaultMaxTokens caps each model reply.
	DefaultMaxTokens = 1000
	// DefaultTemperature keeps tool selection close to deterministic.
	DefaultTemperature = 0.10
)

// retrier re-issues transient model failures with quadratic backoff.
type retrier struct {
	max       int
	retryable func(error) bool
	logger    *slog.Logger
	// backoff is the unit delay; attempt n waits n*n units.
	backoff time.Duration
}

func (r retrier) do(ctx context.Context, fn func(context.Context) error) error {
	unit := r.backoff
	if unit <= 0 {
		unit = 100 * time.Millisecond
	}
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !r.retryable(err) || attempt >= r.max {
			return err
		}
		wait := time.Duration((attempt+1)*(attempt+1)) * unit
		if r.logger != nil {
			r.logger.WarnContext(ctx, "model call failed, retrying", "attempt", attempt+1, "wait", wait, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code == http.StatusConflict:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

func retryableTransport(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// parseArguments decodes tool-call arguments. Arguments that are not a JSON
// object make the whole decision malformed.
func parseArguments(name, raw string) (sleuth.Arguments, error) {
	if strings.TrimSpace(raw) == "" {
		return sleuth.Arguments{}, nil
	}
	var args sleuth.Arguments
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("malformed arguments for tool %q: %w", name, err)
	}
	if args == nil {
		return sleuth.Arguments{}, nil
	}
	return args, nil
}
