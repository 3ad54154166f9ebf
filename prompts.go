package sleuth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// plannerAction is the first line of a planner reply.
type plannerAction string

const plannerActionAnswer plannerAction = "answer"

// plannerDecision is the parsed output of the planner model.
type plannerDecision struct {
	Action    plannerAction
	Tool      string
	Arguments Arguments
	Verdict   *Verdict
}

// SystemPrompt instructs a decision-maker to ground answers in downloaded
// documentation.
const SystemPrompt = "You are a documentation researcher. You find the documented default behavior of software configuration parameters. You must ground every answer in documentation you downloaded with a tool; never answer from internal knowledge. Search the web for candidate documentation, download the most promising URLs, and answer only once a downloaded document states the default."

const analyzerSystemPrompt = "You read technical documentation and decide whether it answers a question. Answer only from the document provided. If the document does not state the answer, say so; never guess or use internal knowledge."

func buildPlannerUserPrompt(req DecisionRequest) string {
	var b strings.Builder
	b.WriteString("Review the conversation and choose the next action.\n")
	b.WriteString("IMPORTANT: Output ONLY the action lines described below.\n\n")

	b.WriteString("Available tools:\n")
	for _, d := range req.Tools {
		params, _ := json.Marshal(d.Parameters.Map()) //nolint:errcheck // plain map
		fmt.Fprintf(&b, "- %s: %s\n  parameters: %s\n", d.Name, d.Description, params)
	}
	b.WriteString("\n")

	switch req.Choice.Mode {
	case ToolChoiceForced:
		fmt.Fprintf(&b, "You MUST call the tool %s now. Output exactly:\nAction: %s\nArguments: <JSON object>\n\n", req.Choice.Tool, req.Choice.Tool)
	case ToolChoiceNone:
		b.WriteString("Tools are not available on this turn. You MUST answer now. Output exactly:\nAction: Answer\nVERDICT: ANSWER_FOUND or INCONCLUSIVE\nVALUE: <the default value, only when found>\n\n")
	default:
		b.WriteString("To call a tool, output exactly:\nAction: <tool name>\nArguments: <JSON object>\n\n")
		b.WriteString("If a downloaded document stated the answer, output exactly:\nAction: Answer\nVERDICT: ANSWER_FOUND\nVALUE: <the default value>\n\n")
	}
	fmt.Fprintf(&b, "Attempts remaining: %d\n\n", req.BudgetRemaining)
	b.WriteString("Conversation:\n")
	b.WriteString(req.Conversation.Snapshot())
	return b.String()
}

func buildAnalyzerUserPrompt(content, question string) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nDocument:\n")
	b.WriteString(content)
	b.WriteString("\n\nTask: Decide whether the document answers the question. Respond with exactly one of:\n")
	b.WriteString("VERDICT: ANSWER_FOUND\nVALUE: <the default value as stated in the document>\n\n")
	b.WriteString("VERDICT: DISCARD\nREASON: <why the document is irrelevant>\n\n")
	b.WriteString("VERDICT: INCONCLUSIVE\nREASON: <what is missing>\n")
	return b.String()
}

var (
	actionRegex    = regexp.MustCompile(`(?im)^\s*action\s*[:\-]\s*(\S+)\s*$`) //nolint:gochecknoglobals
	argumentsRegex = regexp.MustCompile(`(?is)arguments\s*[:\-]\s*(\{.*\})`)    //nolint:gochecknoglobals
	thinkRegex     = regexp.MustCompile(`(?s)<think>.*?</think>`)                //nolint:gochecknoglobals
)

// StripThinkBlocks removes <think>...</think> blocks from LLM responses.
// Some models (like qwen3) output reasoning in these blocks.
func StripThinkBlocks(s string) string {
	return strings.TrimSpace(thinkRegex.ReplaceAllString(s, ""))
}

// getContent extracts usable text from an LLM response. It strips <think>
// blocks from Text first. If Text is empty (e.g. thinking models that put
// everything in reasoning tokens), falls back to the Reasoning field.
func getContent(resp LLMResponse, logger *slog.Logger, label string) string {
	text := StripThinkBlocks(resp.Text)
	if strings.TrimSpace(text) != "" {
		return text
	}
	if strings.TrimSpace(resp.Reasoning) != "" {
		if logger != nil {
			logger.Debug("text empty, using reasoning", "label", label, "chars", len(resp.Reasoning))
		}
		return StripThinkBlocks(resp.Reasoning)
	}
	return ""
}

// parsePlannerDecision reads the planner output. tools lists the names the
// planner may call, matched case-insensitively.
func parsePlannerDecision(raw string, tools []ToolDescriptor) (plannerDecision, error) {
	trimmed := StripThinkBlocks(raw)
	if trimmed == "" {
		return plannerDecision{}, errors.New("planner returned an empty reply")
	}

	action := ""
	if m := actionRegex.FindStringSubmatch(trimmed); len(m) == 2 {
		action = strings.TrimSpace(m[1])
	}

	// A bare verdict block is an implicit answer. This helps smaller models
	// that skip the action line.
	if action == "" || strings.EqualFold(action, string(plannerActionAnswer)) {
		if v, ok := ParseVerdict(trimmed); ok {
			return plannerDecision{Action: plannerActionAnswer, Verdict: &v}, nil
		}
		if action != "" {
			return plannerDecision{Action: plannerActionAnswer}, nil
		}
		return plannerDecision{}, fmt.Errorf("unable to parse planner output: %q", raw)
	}

	name := action
	for _, d := range tools {
		if strings.EqualFold(d.Name, action) {
			name = d.Name
			break
		}
	}

	args := Arguments{}
	if m := argumentsRegex.FindStringSubmatch(trimmed); len(m) == 2 {
		if err := json.Unmarshal([]byte(m[1]), &args); err != nil {
			return plannerDecision{}, fmt.Errorf("planner arguments for %s are not a JSON object: %w", name, err)
		}
	}
	return plannerDecision{Action: plannerAction(name), Tool: name, Arguments: args}, nil
}
