package sleuth

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a Conversation.
type Message struct {
	Role    Role
	Content string
	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []ToolCall
	// Result is set on tool messages.
	Result *ToolResult
}

// Conversation is the append-only record of a run: the goal statement,
// decisions, tool results, and nudges. It is scoped to one run.
type Conversation struct {
	messages []Message
}

// NewConversation opens a conversation with the goal statement.
func NewConversation(goalStatement string) *Conversation {
	c := &Conversation{}
	c.Append(Message{Role: RoleUser, Content: strings.TrimSpace(goalStatement)})
	return c
}

// Append adds a message. Messages are never modified once appended.
func (c *Conversation) Append(m Message) {
	if len(m.ToolCalls) > 0 {
		calls := make([]ToolCall, len(m.ToolCalls))
		copy(calls, m.ToolCalls)
		m.ToolCalls = calls
	}
	c.messages = append(c.messages, m)
}

// Messages returns a copy of the messages in order.
func (c *Conversation) Messages() []Message {
	if c == nil {
		return nil
	}
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	if c == nil {
		return 0
	}
	return len(c.messages)
}

// Results returns the tool results recorded so far.
func (c *Conversation) Results() []ToolResult {
	if c == nil {
		return nil
	}
	var out []ToolResult
	for _, m := range c.messages {
		if m.Result != nil {
			out = append(out, *m.Result)
		}
	}
	return out
}

// Snapshot renders the conversation as plain text for prompt-only models.
func (c *Conversation) Snapshot() string {
	var b strings.Builder
	for i, m := range c.Messages() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch m.Role {
		case RoleAssistant:
			b.WriteString("Assistant:")
			if s := strings.TrimSpace(m.Content); s != "" {
				b.WriteString(" ")
				b.WriteString(s)
			}
			for _, call := range m.ToolCalls {
				args, _ := json.Marshal(call.Arguments) //nolint:errcheck // map of JSON values
				fmt.Fprintf(&b, "\n  -> %s %s", call.Name, args)
			}
		case RoleTool:
			name := ""
			if m.Result != nil {
				name = m.Result.Tool
			}
			fmt.Fprintf(&b, "Tool result (%s):\n%s", name, m.Content)
		default:
			b.WriteString("User: ")
			b.WriteString(m.Content)
		}
	}
	return b.String()
}
