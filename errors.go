package sleuth

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnauthorized marks provider responses rejecting the credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited marks provider responses refusing the request rate.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnreachable marks network-level failures (DNS, refused, reset).
	ErrUnreachable = errors.New("unreachable")
	// ErrTimeout marks requests that ran out of time.
	ErrTimeout = errors.New("timeout")

	ErrInvalidBudget = errors.New("retry budget must be positive")
	ErrEmptyGoal     = errors.New("goal is empty")
	ErrNoDecider     = errors.New("decision maker is not configured")
	ErrNoTools       = errors.New("no tools registered")
)

// ProviderError is returned by search providers and fetchers when the
// remote side could not serve the request.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ToolErrorKind classifies tool failures.
type ToolErrorKind string

const (
	ToolErrorUnreachable      ToolErrorKind = "unreachable"
	ToolErrorAuth             ToolErrorKind = "auth"
	ToolErrorRateLimited      ToolErrorKind = "rate_limited"
	ToolErrorTimeout          ToolErrorKind = "timeout"
	ToolErrorCanceled         ToolErrorKind = "canceled"
	ToolErrorInvalidArguments ToolErrorKind = "invalid_arguments"
	ToolErrorProvider         ToolErrorKind = "provider"
	ToolErrorInternal         ToolErrorKind = "internal"
)

// ToolError is a transport or provider failure inside a tool. The agent
// records it and charges the retry budget; it never ends the run by itself.
type ToolError struct {
	Tool string
	Kind ToolErrorKind
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Kind, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError wraps err, deriving the kind from the error chain. An
// existing ToolError is returned unchanged apart from a missing tool name.
func NewToolError(tool string, err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		if te.Tool == "" {
			te.Tool = tool
		}
		return te
	}
	return &ToolError{Tool: tool, Kind: classify(err), Err: err}
}

func classify(err error) ToolErrorKind {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return ToolErrorCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return ToolErrorTimeout
	case errors.Is(err, ErrUnauthorized):
		return ToolErrorAuth
	case errors.Is(err, ErrRateLimited):
		return ToolErrorRateLimited
	case errors.Is(err, ErrUnreachable):
		return ToolErrorUnreachable
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return ToolErrorTimeout
		}
		return ToolErrorUnreachable
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return ToolErrorProvider
	}
	return ToolErrorInternal
}

// DecisionMakerError means the decision-maker itself failed: the inference
// service was unavailable, or it asked for something that cannot be run.
// It ends the run with StatusError.
type DecisionMakerError struct {
	Err error
}

func (e *DecisionMakerError) Error() string {
	return fmt.Sprintf("decision maker: %v", e.Err)
}

func (e *DecisionMakerError) Unwrap() error { return e.Err }
