package sleuth

import (
	"fmt"
	"strings"
)

// Goal describes what the agent is looking for. It is created once per run
// and never mutated.
type Goal struct {
	// Subject is the product or API whose documentation is wanted,
	// e.g. "Azure OpenAI".
	Subject string
	// Parameter is the setting or fact of interest, e.g. "Temperature".
	Parameter string
	// Instructions replaces the default goal statement when non-empty.
	Instructions string
}

// NewGoal trims its inputs and returns a Goal.
func NewGoal(subject, parameter string) Goal {
	return Goal{Subject: strings.TrimSpace(subject), Parameter: strings.TrimSpace(parameter)}
}

// Valid reports whether the goal names something to look for.
func (g Goal) Valid() bool {
	return strings.TrimSpace(g.Subject) != "" || strings.TrimSpace(g.Instructions) != ""
}

// Question is the question handed to the content analyzer.
func (g Goal) Question() string {
	subject := strings.TrimSpace(g.Subject)
	param := strings.TrimSpace(g.Parameter)
	switch {
	case param != "" && subject != "":
		return fmt.Sprintf("What is the default behavior of %s when %s is not specified?", subject, param)
	case subject != "":
		return fmt.Sprintf("What does the documentation for %s say?", subject)
	default:
		return strings.TrimSpace(g.Instructions)
	}
}

// Prompt renders the goal statement that opens the conversation.
func (g Goal) Prompt(budget int) string {
	if s := strings.TrimSpace(g.Instructions); s != "" {
		return s
	}
	param := strings.TrimSpace(g.Parameter)
	if param == "" {
		param = "the parameter in question"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The overall goal is to find high quality (authoritative) documentation about %s on the web ", strings.TrimSpace(g.Subject))
	fmt.Fprintf(&b, "and analyze it to answer specific questions about the default behavior when %s is not specified. ", param)
	b.WriteString("If you encounter errors along the way or find content that does not reveal the needed data, ")
	fmt.Fprintf(&b, "keep trying to find the right content. You can try up to %d documentation sources.", budget)
	return b.String()
}
