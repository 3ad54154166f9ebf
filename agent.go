package sleuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/smhanov/sleuth"

// Event describes one step of a run, for progress reporting.
type Event struct {
	RunID           string
	Iteration       int
	Attempt         int
	Tool            string
	Arguments       Arguments
	Status          ToolStatus
	Detail          string
	Verdict         *Verdict
	BudgetRemaining int
}

// Agent coordinates the decision-maker, the tools, and the analyzer. It
// holds no per-run state and may run several goals concurrently.
type Agent struct {
	decider      DecisionMaker
	analyzer     ContentAnalyzer
	searcher     SearchProvider
	searchOpts   []SearchToolOption
	fetcher      FetchProvider
	extraTools   []Tool
	budget       int
	policy       ToolChoicePolicy
	toolTimeout  time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
	tracer       trace.Tracer
	onEvent      func(Event)
	tools        *ToolSet
}

// New constructs an Agent with optional configuration.
func New(opts ...Option) *Agent {
	a := &Agent{
		budget: DefaultRetryBudget,
		policy: StaticChoice(Auto()),
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}

	var tools []Tool
	if a.searcher != nil {
		searchOpts := append([]SearchToolOption{WithSearchLogger(a.logger)}, a.searchOpts...)
		tools = append(tools, NewWebSearchTool(a.searcher, searchOpts...))
	}
	if a.fetcher != nil {
		tools = append(tools, NewDocumentFetchTool(a.fetcher, a.fetchTimeout, a.logger))
	}
	a.tools = NewToolSet(append(tools, a.extraTools...)...)
	return a
}

// Tools returns the tools configured on the agent.
func (a *Agent) Tools() *ToolSet { return a.tools }

// Answer runs goal with the configured tools and retry budget.
func (a *Agent) Answer(ctx context.Context, goal Goal) (Result, error) {
	return a.Run(ctx, goal, a.tools, a.budget)
}

// Run drives the decision-maker until an answer is found, the budget is
// exhausted, or the decision-maker fails. The returned error is non-nil
// only when the run cannot start; every outcome of a started run is
// reported through Result.Status.
func (a *Agent) Run(ctx context.Context, goal Goal, tools *ToolSet, budget int) (Result, error) {
	switch {
	case !goal.Valid():
		return Result{}, ErrEmptyGoal
	case budget <= 0:
		return Result{}, ErrInvalidBudget
	case a.decider == nil:
		return Result{}, ErrNoDecider
	case tools.Len() == 0:
		return Result{}, ErrNoTools
	}

	r := &run{
		agent:   a,
		id:      uuid.NewString(),
		goal:    goal,
		tools:   tools,
		budget:  NewRetryBudget(budget),
		conv:    NewConversation(goal.Prompt(budget)),
		seen:    make(map[string]bool),
		fetched: make(map[string]bool),
	}
	r.log = a.logger.With("component", "agent", "run_id", r.id)
	return r.loop(ctx), nil
}

// run is the state of a single Run call.
type run struct {
	agent   *Agent
	id      string
	goal    Goal
	tools   *ToolSet
	budget  *RetryBudget
	conv    *Conversation
	stats   RunStats
	usage   Usage
	seen    map[string]bool
	fetched map[string]bool
	log     *slog.Logger
	span    trace.Span
}

func (r *run) loop(ctx context.Context) Result {
	ctx, r.span = r.agent.tracer.Start(ctx, "sleuth.run", trace.WithAttributes(
		attribute.String("sleuth.run_id", r.id),
		attribute.String("sleuth.subject", r.goal.Subject),
		attribute.Int("sleuth.budget", r.budget.Remaining()),
	))
	defer r.span.End()

	r.log.InfoContext(ctx, "run started", "subject", r.goal.Subject, "parameter", r.goal.Parameter, "budget", r.budget.Remaining())
	descriptors := r.tools.Descriptors()

	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return r.finish(ctx, StatusError, err)
		}
		r.stats.Iterations = iteration

		choice := r.agent.policy.Choose(Turn{
			Iteration:       iteration,
			BudgetRemaining: r.budget.Remaining(),
			Searches:        r.stats.Searches,
		})
		decision, err := r.decide(ctx, iteration, descriptors, choice)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.finish(ctx, StatusError, ctxErr)
			}
			return r.finish(ctx, StatusError, &DecisionMakerError{Err: err})
		}

		if decision.Final() {
			r.conv.Append(Message{Role: RoleAssistant, Content: decision.Content})
			if decision.Verdict != nil && decision.Verdict.Found() {
				return r.succeed(ctx, *decision.Verdict, decision.Content, "")
			}
			r.budget.Consume()
			r.emit(Event{Iteration: iteration, Status: ToolNegative, Detail: "answer without a confirmed verdict", Verdict: decision.Verdict})
			r.log.InfoContext(ctx, "inconclusive answer", "iteration", iteration, "budget_remaining", r.budget.Remaining())
			if r.budget.Exhausted() {
				return r.finish(ctx, StatusBudgetExhausted, nil)
			}
			r.conv.Append(Message{Role: RoleUser, Content: nudge(r.budget.Remaining())})
			continue
		}

		calls := make([]ToolCall, len(decision.ToolCalls))
		for i, call := range decision.ToolCalls {
			if _, ok := r.tools.Get(call.Name); !ok {
				return r.finish(ctx, StatusError, &DecisionMakerError{Err: fmt.Errorf("unknown tool %q", call.Name)})
			}
			if call.ID == "" {
				call.ID = fmt.Sprintf("call_%d_%d", iteration, i+1)
			}
			if call.Arguments == nil {
				call.Arguments = Arguments{}
			}
			calls[i] = call
		}
		r.conv.Append(Message{Role: RoleAssistant, Content: decision.Content, ToolCalls: calls})

		for _, call := range calls {
			res := r.dispatch(ctx, iteration, call)
			r.conv.Append(Message{Role: RoleTool, Content: res.Render(), Result: &res})

			// A call cut short by cancellation is not charged.
			if err := ctx.Err(); err != nil {
				return r.finish(ctx, StatusError, err)
			}
			if res.Verdict != nil && res.Verdict.Found() {
				return r.succeed(ctx, *res.Verdict, "", res.Fetch.URL)
			}
			if res.Status != ToolSuccess {
				r.budget.Consume()
				if r.budget.Exhausted() {
					return r.finish(ctx, StatusBudgetExhausted, nil)
				}
			}
		}
	}
}

func (r *run) decide(ctx context.Context, iteration int, tools []ToolDescriptor, choice ToolChoice) (Decision, error) {
	ctx, span := r.agent.tracer.Start(ctx, "sleuth.decide", trace.WithAttributes(
		attribute.Int("sleuth.iteration", iteration),
		attribute.String("sleuth.tool_choice", choice.String()),
	))
	defer span.End()

	decision, err := r.agent.decider.Decide(ctx, DecisionRequest{
		Goal:            r.goal,
		Tools:           tools,
		Choice:          choice,
		Conversation:    r.conv,
		BudgetRemaining: r.budget.Remaining(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Decision{}, err
	}
	r.usage = r.usage.Add(decision.Usage)

	names := make([]string, 0, len(decision.ToolCalls))
	for _, c := range decision.ToolCalls {
		names = append(names, c.Name)
	}
	span.SetAttributes(attribute.StringSlice("sleuth.tool_calls", names))
	r.log.DebugContext(ctx, "decision", "iteration", iteration, "tool_choice", choice.String(), "tool_calls", names)
	return decision, nil
}

// dispatch runs one tool call and converts every outcome, including
// panics and errors, into a ToolResult.
func (r *run) dispatch(ctx context.Context, iteration int, call ToolCall) ToolResult {
	tool, _ := r.tools.Get(call.Name)
	attempt := r.stats.nextAttempt(call.Name)
	r.stats.ToolCalls++

	ctx = WithCallInfo(ctx, CallInfo{RunID: r.id, Iteration: iteration, Attempt: attempt})
	ctx, span := r.agent.tracer.Start(ctx, "sleuth.tool", trace.WithAttributes(
		attribute.String("sleuth.tool", call.Name),
		attribute.Int("sleuth.iteration", iteration),
		attribute.Int("sleuth.attempt", attempt),
	))
	defer span.End()

	res := ToolResult{CallID: call.ID, Tool: call.Name}
	if err := tool.Descriptor().Validate(call.Arguments); err != nil {
		res.Status = ToolFailed
		res.Err = &ToolError{Tool: call.Name, Kind: ToolErrorInvalidArguments, Err: err}
	} else if out, err := r.agent.invoke(ctx, tool, call.Name, call.Arguments); err != nil {
		res.Status = ToolFailed
		res.Err = err
	} else {
		r.record(ctx, &res, out)
	}

	switch res.Status {
	case ToolFailed:
		r.stats.ToolErrors++
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	case ToolNegative:
		r.stats.NegativeResults++
	}
	span.SetAttributes(attribute.String("sleuth.tool_status", string(res.Status)))

	detail := res.Output
	if res.Err != nil {
		detail = res.Err.Error()
	}
	remaining := r.budget.Remaining()
	if res.Status != ToolSuccess && remaining > 0 {
		remaining--
	}
	r.log.InfoContext(ctx, "tool call",
		"iteration", iteration,
		"tool", call.Name,
		"try", attempt,
		"arguments", map[string]any(call.Arguments),
		"status", res.Status,
		"detail", firstLine(detail),
		"budget_remaining", remaining,
	)
	r.emit(Event{
		Iteration:       iteration,
		Attempt:         attempt,
		Tool:            call.Name,
		Arguments:       call.Arguments,
		Status:          res.Status,
		Detail:          detail,
		Verdict:         res.Verdict,
		BudgetRemaining: remaining,
	})
	return res
}

// record classifies a well-formed tool output. Searches that surface no
// new URLs and repeated fetches count as failing to make progress.
func (r *run) record(ctx context.Context, res *ToolResult, out ToolOutput) {
	res.Output = out.Text
	res.URLs = out.URLs
	res.Fetch = out.Fetch
	res.Status = ToolSuccess
	if out.Negative {
		res.Status = ToolNegative
	}

	if len(out.URLs) > 0 && !out.Negative {
		fresh := 0
		for _, u := range out.URLs {
			if !r.seen[u] {
				r.seen[u] = true
				fresh++
			}
		}
		if fresh == 0 {
			res.Status = ToolNegative
			res.Output = "all results were already seen; try a different search string:\n" + out.Text
			return
		}
		r.stats.Searches++
	}

	if out.Fetch == nil || !out.Fetch.OK || res.Status != ToolSuccess {
		return
	}
	r.stats.Fetches++
	if r.fetched[out.Fetch.URL] {
		res.Status = ToolNegative
		res.Output = fmt.Sprintf("%s was already analyzed; choose another source", out.Fetch.URL)
		return
	}
	r.fetched[out.Fetch.URL] = true
	if strings.TrimSpace(out.Fetch.Content) == "" {
		res.Status = ToolNegative
		res.Output = fmt.Sprintf("%s returned an empty document", out.Fetch.URL)
		return
	}
	if r.agent.analyzer == nil {
		return
	}

	verdict, err := r.analyze(ctx, out.Fetch)
	if err != nil {
		res.Status = ToolFailed
		res.Err = NewToolError(res.Tool, fmt.Errorf("analyze: %w", err))
		return
	}
	res.Verdict = &verdict
	if !verdict.Found() {
		res.Status = ToolNegative
	}
}

func (r *run) analyze(ctx context.Context, doc *FetchResult) (Verdict, error) {
	ctx, span := r.agent.tracer.Start(ctx, "sleuth.analyze", trace.WithAttributes(
		attribute.String("sleuth.url", doc.URL),
		attribute.Int("sleuth.content_bytes", len(doc.Content)),
	))
	defer span.End()

	r.stats.Analyses++
	verdict, err := r.agent.analyzer.Analyze(ctx, doc.Content, r.goal.Question())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Verdict{}, err
	}
	if verdict.Kind == "" {
		verdict.Kind = VerdictInconclusive
	}
	span.SetAttributes(attribute.String("sleuth.verdict", string(verdict.Kind)))
	r.log.InfoContext(ctx, "analysis", "url", doc.URL, "verdict", verdict.String())
	return verdict, nil
}

// invoke calls the tool under the agent's timeout, turning errors and
// panics into *ToolError.
func (a *Agent) invoke(ctx context.Context, tool Tool, name string, args Arguments) (out ToolOutput, err error) {
	if a.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.toolTimeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = &ToolError{Tool: name, Kind: ToolErrorInternal, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	out, err = tool.Call(ctx, args)
	if err != nil {
		return ToolOutput{}, NewToolError(name, err)
	}
	return out, nil
}

func (r *run) succeed(ctx context.Context, v Verdict, content, source string) Result {
	answer := v.Value
	if answer == "" {
		answer = strings.TrimSpace(content)
	}
	res := r.finish(ctx, StatusSuccess, nil)
	res.Answer = answer
	res.Source = source
	r.span.SetAttributes(attribute.String("sleuth.source", source))
	return res
}

func (r *run) finish(ctx context.Context, status Status, cause error) Result {
	r.span.SetAttributes(
		attribute.String("sleuth.status", string(status)),
		attribute.Int("sleuth.budget_used", r.budget.Used()),
		attribute.Int("sleuth.iterations", r.stats.Iterations),
	)
	if cause != nil {
		r.span.RecordError(cause)
		r.span.SetStatus(codes.Error, cause.Error())
	}

	attrs := []any{"status", status, "iterations", r.stats.Iterations, "budget_used", r.budget.Used(), "tool_errors", r.stats.ToolErrors}
	switch {
	case cause != nil && !errors.Is(cause, context.Canceled):
		r.log.ErrorContext(ctx, "run finished", append(attrs, "error", cause)...)
	default:
		r.log.InfoContext(ctx, "run finished", attrs...)
	}

	return Result{
		RunID:           r.id,
		Status:          status,
		Cause:           cause,
		BudgetUsed:      r.budget.Used(),
		BudgetRemaining: r.budget.Remaining(),
		Stats:           r.stats,
		Usage:           r.usage,
		Transcript:      r.conv.Messages(),
	}
}

func (r *run) emit(e Event) {
	if r.agent.onEvent == nil {
		return
	}
	e.RunID = r.id
	if e.BudgetRemaining == 0 && e.Tool == "" {
		e.BudgetRemaining = r.budget.Remaining()
	}
	r.agent.onEvent(e)
}

func nudge(remaining int) string {
	return fmt.Sprintf("No answer has been confirmed from a retrieved document yet. Keep going: search for and download authoritative documentation. %d attempts remain.", remaining)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
