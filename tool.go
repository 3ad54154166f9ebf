package sleuth

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// Property describes one tool parameter.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Schema is the JSON-schema subset used for tool parameters.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Map renders the schema as a generic map, the shape model SDKs expect.
func (s Schema) Map() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
	}
	typ := s.Type
	if typ == "" {
		typ = "object"
	}
	out := map[string]any{"type": typ, "properties": props}
	if len(s.Required) > 0 {
		out["required"] = slices.Clone(s.Required)
	}
	return out
}

// ToolDescriptor is what the decision-maker learns about a tool.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// Arguments are the decoded arguments of a tool call.
type Arguments map[string]any

// String returns the trimmed string argument under key.
func (a Arguments) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Int returns the integer argument under key, or def when absent.
func (a Arguments) Int(key string, def int) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// ValidationError lists the ways a call's arguments violate the schema.
type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments: %s", strings.Join(v.Problems, "; "))
}

// Validate checks args against the descriptor's schema.
func (d ToolDescriptor) Validate(args Arguments) error {
	var problems []string
	for _, name := range d.Parameters.Required {
		v, ok := args[name]
		if !ok || v == nil {
			problems = append(problems, fmt.Sprintf("missing %q", name))
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			problems = append(problems, fmt.Sprintf("empty %q", name))
		}
	}
	for name, v := range args {
		prop, ok := d.Parameters.Properties[name]
		if !ok || v == nil {
			continue
		}
		if !matchesType(prop.Type, v) {
			problems = append(problems, fmt.Sprintf("%q must be %s", name, prop.Type))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return &ValidationError{Problems: problems}
}

func matchesType(typ string, v any) bool {
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer":
		switch n := v.(type) {
		case int, int64:
			return true
		case float64:
			return n == math.Trunc(n)
		case json.Number:
			_, err := n.Int64()
			return err == nil
		}
		return false
	case "number":
		switch v.(type) {
		case int, int64, float64, json.Number:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	default:
		return true
	}
}

// ToolCall is a decision-maker's request to run a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments Arguments
}

// ToolOutput is what a tool hands back to the agent on a well-formed call.
type ToolOutput struct {
	// Text is the rendering shown to the decision-maker.
	Text string
	// Negative marks a well-formed "not found" outcome.
	Negative bool
	URLs     []string
	Fetch    *FetchResult
}

// Tool is a capability exposed to the decision-maker.
type Tool interface {
	Descriptor() ToolDescriptor
	Call(ctx context.Context, args Arguments) (ToolOutput, error)
}

// ToolSet is an immutable, name-indexed collection of tools.
type ToolSet struct {
	byName map[string]Tool
	order  []string
}

// NewToolSet indexes tools by descriptor name. Later tools with a
// duplicate name replace earlier ones.
func NewToolSet(tools ...Tool) *ToolSet {
	ts := &ToolSet{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			continue
		}
		name := t.Descriptor().Name
		if _, dup := ts.byName[name]; !dup {
			ts.order = append(ts.order, name)
		}
		ts.byName[name] = t
	}
	return ts
}

// Get returns the tool registered under name.
func (ts *ToolSet) Get(name string) (Tool, bool) {
	if ts == nil {
		return nil, false
	}
	t, ok := ts.byName[strings.TrimSpace(name)]
	return t, ok
}

// Len returns the number of tools.
func (ts *ToolSet) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.order)
}

// Descriptors lists the tools in registration order.
func (ts *ToolSet) Descriptors() []ToolDescriptor {
	if ts == nil {
		return nil
	}
	out := make([]ToolDescriptor, 0, len(ts.order))
	for _, name := range ts.order {
		out = append(out, ts.byName[name].Descriptor())
	}
	return out
}
