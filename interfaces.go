package sleuth

import "context"

// SearchResult is a single item returned by a SearchProvider.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SearchProvider executes a query and returns at most max results.
// Returning zero results is not an error. Transport, auth, and rate-limit
// failures must be reported as errors (see ProviderError).
type SearchProvider interface {
	Search(ctx context.Context, query string, max int) ([]SearchResult, error)
}

// FetchResult describes the outcome of retrieving a URL.
// OK is false for any non-2xx response; Status carries the code.
type FetchResult struct {
	URL         string
	OK          bool
	Status      int
	ContentType string
	Content     string
}

// FetchProvider retrieves content for a URL. HTTP failure statuses are
// reported through FetchResult.OK, never as errors. Errors are reserved
// for network-level failures.
type FetchProvider interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// FetchProviderFunc adapts a function to the FetchProvider interface.
type FetchProviderFunc func(ctx context.Context, url string) (FetchResult, error)

// Fetch calls f.
func (f FetchProviderFunc) Fetch(ctx context.Context, url string) (FetchResult, error) {
	return f(ctx, url)
}

// Usage counts tokens spent by a language model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add returns the sum of two usage records.
func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

// LLMResponse is returned by LLMProvider.Generate.
type LLMResponse struct {
	Text      string
	Reasoning string
	Usage     Usage
}

// LLMProvider is implemented by plain text-completion clients. It backs the
// PromptDecisionMaker and the LLMAnalyzer.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (LLMResponse, error)
}

// ContentAnalyzer judges whether retrieved content answers the question.
// Implementations must be idempotent per (content, question) pair and free
// of side effects.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, content, question string) (Verdict, error)
}

// AnalyzerFunc adapts a function to the ContentAnalyzer interface.
type AnalyzerFunc func(ctx context.Context, content, question string) (Verdict, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, content, question string) (Verdict, error) {
	return f(ctx, content, question)
}

// DecisionRequest is everything a decision-maker sees on one turn.
type DecisionRequest struct {
	Goal            Goal
	Tools           []ToolDescriptor
	Choice          ToolChoice
	Conversation    *Conversation
	BudgetRemaining int
}

// Decision is the decision-maker's reply: either tool calls to run, or a
// final answer. A final answer ends the run only when Verdict reports
// ANSWER_FOUND.
type Decision struct {
	Content   string
	ToolCalls []ToolCall
	Verdict   *Verdict
	Usage     Usage
}

// Final reports whether the decision carries no tool calls.
func (d Decision) Final() bool {
	return len(d.ToolCalls) == 0
}

// DecisionMaker selects the next action given the goal, the available
// tools, and the conversation so far.
type DecisionMaker interface {
	Decide(ctx context.Context, req DecisionRequest) (Decision, error)
}

// DecisionMakerFunc adapts a function to the DecisionMaker interface.
type DecisionMakerFunc func(ctx context.Context, req DecisionRequest) (Decision, error)

// Decide calls f.
func (f DecisionMakerFunc) Decide(ctx context.Context, req DecisionRequest) (Decision, error) {
	return f(ctx, req)
}
