package sleuth

import (
	"context"
	"fmt"
	"log/slog"
)

// PromptDecisionMaker drives a plain text-completion model through a line
// protocol ("Action: <tool>" / "Arguments: {...}" or "Action: Answer" with
// VERDICT lines). It suits models without native tool calling.
type PromptDecisionMaker struct {
	llm    LLMProvider
	logger *slog.Logger
}

// NewPromptDecisionMaker wraps llm. A nil logger selects slog.Default.
func NewPromptDecisionMaker(llm LLMProvider, logger *slog.Logger) *PromptDecisionMaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptDecisionMaker{llm: llm, logger: logger.With("component", "planner")}
}

// Decide implements DecisionMaker.
func (p *PromptDecisionMaker) Decide(ctx context.Context, req DecisionRequest) (Decision, error) {
	user := buildPlannerUserPrompt(req)
	p.logger.DebugContext(ctx, "planner prompt", "system", SystemPrompt, "user", user)

	resp, err := p.llm.Generate(ctx, SystemPrompt, user)
	if err != nil {
		return Decision{}, fmt.Errorf("planner: %w", err)
	}
	p.logger.DebugContext(ctx, "planner response", "text", resp.Text)

	raw := getContent(resp, p.logger, "planner")
	parsed, err := parsePlannerDecision(raw, req.Tools)
	if err != nil {
		// Forced search needs no model input beyond the subject.
		if req.Choice.Mode == ToolChoiceForced && req.Choice.Tool == SearchToolName {
			return p.forcedSearch(req, raw, resp.Usage), nil
		}
		return Decision{}, err
	}

	switch {
	case req.Choice.Mode == ToolChoiceNone && parsed.Action != plannerActionAnswer:
		// Tool use was forbidden; the reply carries no usable verdict.
		return Decision{Content: raw, Usage: resp.Usage}, nil
	case req.Choice.Mode == ToolChoiceForced && parsed.Tool != req.Choice.Tool:
		if req.Choice.Tool == SearchToolName {
			return p.forcedSearch(req, raw, resp.Usage), nil
		}
		return Decision{}, fmt.Errorf("planner ignored required tool %s", req.Choice.Tool)
	case parsed.Action == plannerActionAnswer:
		return Decision{Content: raw, Verdict: parsed.Verdict, Usage: resp.Usage}, nil
	}

	return Decision{
		Content:   raw,
		ToolCalls: []ToolCall{{Name: parsed.Tool, Arguments: parsed.Arguments}},
		Usage:     resp.Usage,
	}, nil
}

func (p *PromptDecisionMaker) forcedSearch(req DecisionRequest, raw string, usage Usage) Decision {
	p.logger.Debug("planner did not search; searching for the subject")
	return Decision{
		Content:   raw,
		ToolCalls: []ToolCall{{Name: SearchToolName, Arguments: Arguments{"search_string": req.Goal.Subject}}},
		Usage:     usage,
	}
}
