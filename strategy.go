package sleuth

import "fmt"

// ToolChoiceMode controls how the decision-maker may use tools on a turn.
type ToolChoiceMode string

const (
	// ToolChoiceAuto lets the model pick zero or more tools.
	ToolChoiceAuto ToolChoiceMode = "auto"
	// ToolChoiceForced requires the model to call one named tool.
	ToolChoiceForced ToolChoiceMode = "forced"
	// ToolChoiceNone forbids tool use; the model must answer.
	ToolChoiceNone ToolChoiceMode = "none"
)

// ToolChoice is the per-turn tool selection constraint.
type ToolChoice struct {
	Mode ToolChoiceMode
	Tool string
}

// Auto returns the automatic tool choice.
func Auto() ToolChoice { return ToolChoice{Mode: ToolChoiceAuto} }

// Forced returns a choice requiring the named tool.
func Forced(tool string) ToolChoice { return ToolChoice{Mode: ToolChoiceForced, Tool: tool} }

// NoTools returns a choice forbidding tool use.
func NoTools() ToolChoice { return ToolChoice{Mode: ToolChoiceNone} }

func (c ToolChoice) String() string {
	if c.Mode == ToolChoiceForced {
		return fmt.Sprintf("forced(%s)", c.Tool)
	}
	if c.Mode == "" {
		return string(ToolChoiceAuto)
	}
	return string(c.Mode)
}

// Turn is what a ToolChoicePolicy knows about the upcoming decision.
type Turn struct {
	Iteration       int
	BudgetRemaining int
	// Searches counts successful searches so far in this run.
	Searches int
}

// ToolChoicePolicy decides the tool choice for each turn, keeping the loop
// independent of how selection is computed.
type ToolChoicePolicy interface {
	Choose(turn Turn) ToolChoice
}

// ToolChoicePolicyFunc adapts a function to ToolChoicePolicy.
type ToolChoicePolicyFunc func(turn Turn) ToolChoice

// Choose calls f.
func (f ToolChoicePolicyFunc) Choose(turn Turn) ToolChoice { return f(turn) }

// StaticChoice returns the same choice on every turn.
func StaticChoice(c ToolChoice) ToolChoicePolicy {
	return ToolChoicePolicyFunc(func(Turn) ToolChoice { return c })
}

// SearchFirst forces the search tool until one search has succeeded, then
// falls back to automatic choice. Answers must be grounded in retrieved
// documents, never in the model's own knowledge.
func SearchFirst(searchTool string) ToolChoicePolicy {
	return ToolChoicePolicyFunc(func(t Turn) ToolChoice {
		if t.Searches == 0 {
			return Forced(searchTool)
		}
		return Auto()
	})
}
