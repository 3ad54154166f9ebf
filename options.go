package sleuth

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// DefaultRetryBudget is the number of unsuccessful attempts allowed per run
// when none is configured.
const DefaultRetryBudget = 23

// Option configures an Agent.
type Option func(*Agent)

// WithDecisionMaker sets the model that chooses the next action.
func WithDecisionMaker(d DecisionMaker) Option {
	return func(a *Agent) { a.decider = d }
}

// WithAnalyzer sets the content analyzer run on every retrieved document.
func WithAnalyzer(an ContentAnalyzer) Option {
	return func(a *Agent) { a.analyzer = an }
}

// WithSearchProvider registers a WebSearchTool backed by searcher.
func WithSearchProvider(searcher SearchProvider, opts ...SearchToolOption) Option {
	return func(a *Agent) {
		a.searcher = searcher
		a.searchOpts = opts
	}
}

// WithFetchProvider registers a DocumentFetchTool backed by fetcher.
func WithFetchProvider(fetcher FetchProvider) Option {
	return func(a *Agent) { a.fetcher = fetcher }
}

// WithTools registers extra tools alongside the search and fetch tools.
func WithTools(tools ...Tool) Option {
	return func(a *Agent) { a.extraTools = append(a.extraTools, tools...) }
}

// WithRetryBudget sets the default budget used by Answer.
func WithRetryBudget(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.budget = n
		}
	}
}

// WithToolChoicePolicy sets how tool choice is computed per turn.
func WithToolChoicePolicy(p ToolChoicePolicy) Option {
	return func(a *Agent) {
		if p != nil {
			a.policy = p
		}
	}
}

// WithToolTimeout bounds every tool call. Zero leaves only the caller's
// context and the tools' own timeouts in force.
func WithToolTimeout(d time.Duration) Option {
	return func(a *Agent) { a.toolTimeout = d }
}

// WithFetchTimeout sets the timeout of the built-in DocumentFetchTool.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Agent) { a.fetchTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracer sets the OpenTelemetry tracer used for run, decision, and
// tool spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithEventHandler receives one Event per tool call and per final-answer
// turn. It is called synchronously from the run loop.
func WithEventHandler(h func(Event)) Option {
	return func(a *Agent) { a.onEvent = h }
}
