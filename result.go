package sleuth

import (
	"context"
	"fmt"
	"strings"
)

// ToolStatus is the outcome class of a dispatched tool call.
type ToolStatus string

const (
	ToolSuccess  ToolStatus = "SUCCESS"
	ToolNegative ToolStatus = "NEGATIVE"
	ToolFailed   ToolStatus = "FAILED"
)

// ToolResult records one dispatched tool call. It is immutable once
// appended to the conversation.
type ToolResult struct {
	CallID  string
	Tool    string
	Status  ToolStatus
	Output  string
	URLs    []string
	Fetch   *FetchResult
	Verdict *Verdict
	Err     error
}

// Render is the text shown to the decision-maker for this result.
func (r ToolResult) Render() string {
	var b strings.Builder
	switch r.Status {
	case ToolFailed:
		fmt.Fprintf(&b, "FAILED: %v", r.Err)
	case ToolNegative:
		b.WriteString("NOT FOUND: ")
		b.WriteString(r.Output)
	default:
		b.WriteString(r.Output)
	}
	if r.Verdict != nil {
		fmt.Fprintf(&b, "\nAnalysis: %s", r.Verdict)
	}
	return strings.TrimSpace(b.String())
}

// Status is the terminal state of a run.
type Status string

const (
	StatusSuccess         Status = "SUCCESS"
	StatusBudgetExhausted Status = "BUDGET_EXHAUSTED"
	StatusError           Status = "ERROR"
)

// RunStats are per-run counters. They replace process-wide try counters.
type RunStats struct {
	Iterations      int
	ToolCalls       int
	ToolErrors      int
	NegativeResults int
	Searches        int
	Fetches         int
	Analyses        int
	attempts        map[string]int
}

func (s *RunStats) nextAttempt(tool string) int {
	if s.attempts == nil {
		s.attempts = make(map[string]int)
	}
	s.attempts[tool]++
	return s.attempts[tool]
}

// Attempts returns how many times tool was dispatched.
func (s RunStats) Attempts(tool string) int {
	return s.attempts[tool]
}

// Result is returned by Agent.Run.
type Result struct {
	RunID           string
	Status          Status
	Answer          string
	Source          string
	Cause           error
	BudgetUsed      int
	BudgetRemaining int
	Stats           RunStats
	Usage           Usage
	// Transcript holds the run's conversation, for diagnostics.
	Transcript []Message
}

// Findings returns the documents fetched successfully during the run,
// together with their verdicts.
func (r Result) Findings() []ToolResult {
	var out []ToolResult
	for _, m := range r.Transcript {
		if m.Result != nil && m.Result.Fetch != nil && m.Result.Fetch.OK {
			out = append(out, *m.Result)
		}
	}
	return out
}

// CallInfo identifies the tool call a context belongs to.
type CallInfo struct {
	RunID     string
	Iteration int
	// Attempt counts dispatches of the same tool within the run, from 1.
	Attempt int
}

type callInfoKey struct{}

// WithCallInfo attaches info to ctx.
func WithCallInfo(ctx context.Context, info CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey{}, info)
}

// CallInfoFrom returns the CallInfo carried by ctx, if any.
func CallInfoFrom(ctx context.Context) (CallInfo, bool) {
	info, ok := ctx.Value(callInfoKey{}).(CallInfo)
	return info, ok
}
