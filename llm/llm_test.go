package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smhanov/sleuth"
)

type fakeCompletions struct {
	responses []*openai.ChatCompletion
	errs      []error
	params    []openai.ChatCompletionNewParams
}

func (f *fakeCompletions) New(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	i := len(f.params)
	f.params = append(f.params, params)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.responses) {
		return nil, errors.New("no scripted response")
	}
	return f.responses[i], nil
}

type fakeMessages struct {
	responses []*anthropicsdk.Message
	params    []anthropicsdk.MessageNewParams
}

func (f *fakeMessages) New(_ context.Context, params anthropicsdk.MessageNewParams, _ ...anthropicoption.RequestOption) (*anthropicsdk.Message, error) {
	i := len(f.params)
	f.params = append(f.params, params)
	if i >= len(f.responses) {
		return nil, errors.New("no scripted response")
	}
	return f.responses[i], nil
}

func testTools() []sleuth.ToolDescriptor {
	search := sleuth.NewWebSearchTool(nil)
	return []sleuth.ToolDescriptor{search.Descriptor()}
}

func testConversation() *sleuth.Conversation {
	goal := sleuth.NewGoal("vips_thumbnail", "size")
	conv := sleuth.NewConversation(goal.Prompt(23))
	conv.Append(sleuth.Message{Role: sleuth.RoleAssistant, ToolCalls: []sleuth.ToolCall{{
		ID: "call_1", Name: sleuth.SearchToolName, Arguments: sleuth.Arguments{"search_string": "vips_thumbnail"},
	}}})
	res := sleuth.ToolResult{CallID: "call_1", Tool: sleuth.SearchToolName, Status: sleuth.ToolNegative, Output: "no results"}
	conv.Append(sleuth.Message{Role: sleuth.RoleTool, Content: res.Render(), Result: &res})
	conv.Append(sleuth.Message{Role: sleuth.RoleUser, Content: "keep going"})
	return conv
}

func TestOpenAIDecideToolCall(t *testing.T) {
	fake := &fakeCompletions{responses: []*openai.ChatCompletion{{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ChatCompletionMessageToolCall{{
					ID: "call_2",
					Function: openai.ChatCompletionMessageToolCallFunction{
						Name:      sleuth.SearchToolName,
						Arguments: `{"search_string":"vips_thumbnail"}`,
					},
				}},
			},
		}},
		Usage: openai.CompletionUsage{PromptTokens: 12, CompletionTokens: 3},
	}}}
	m := newOpenAI(fake, OpenAIConfig{Model: "gpt-test"}, nil)

	d, err := m.Decide(context.Background(), sleuth.DecisionRequest{
		Tools:        testTools(),
		Choice:       sleuth.Forced(sleuth.SearchToolName),
		Conversation: testConversation(),
	})
	require.NoError(t, err)
	require.Len(t, d.ToolCalls, 1)
	assert.Equal(t, "call_2", d.ToolCalls[0].ID)
	assert.Equal(t, "vips_thumbnail", d.ToolCalls[0].Arguments.String("search_string"))
	assert.Equal(t, sleuth.Usage{InputTokens: 12, OutputTokens: 3}, d.Usage)

	require.Len(t, fake.params, 1)
	p := fake.params[0]
	assert.Equal(t, "gpt-test", string(p.Model))
	assert.Equal(t, int64(DefaultMaxTokens), p.MaxCompletionTokens.Value)
	assert.InDelta(t, DefaultTemperature, p.Temperature.Value, 1e-9)
	require.Len(t, p.Tools, 1)
	assert.Equal(t, sleuth.SearchToolName, p.Tools[0].Function.Name)
	require.NotNil(t, p.ToolChoice.OfChatCompletionNamedToolChoice)
	assert.Equal(t, sleuth.SearchToolName, p.ToolChoice.OfChatCompletionNamedToolChoice.Function.Name)
	// system, goal, assistant, tool, nudge
	assert.Len(t, p.Messages, 5)
}

func TestOpenAIDecideFinalAnswer(t *testing.T) {
	fake := &fakeCompletions{responses: []*openai.ChatCompletion{{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: "VERDICT: ANSWER_FOUND\nVALUE: VIPS_SIZE_BOTH"},
		}},
	}}}
	m := newOpenAI(fake, OpenAIConfig{}, nil)

	d, err := m.Decide(context.Background(), sleuth.DecisionRequest{
		Tools:        testTools(),
		Choice:       sleuth.Auto(),
		Conversation: testConversation(),
	})
	require.NoError(t, err)
	assert.True(t, d.Final())
	require.NotNil(t, d.Verdict)
	assert.Equal(t, "VIPS_SIZE_BOTH", d.Verdict.Value)
	assert.Equal(t, "auto", fake.params[0].ToolChoice.OfAuto.Value)
}

func TestOpenAIRetriesTransientErrors(t *testing.T) {
	fake := &fakeCompletions{
		errs: []error{&openai.Error{StatusCode: http.StatusServiceUnavailable}},
		responses: []*openai.ChatCompletion{nil, {
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "hello"}}},
		}},
	}
	m := newOpenAI(fake, OpenAIConfig{}, nil)
	m.retry.backoff = 1

	resp, err := m.Generate(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Len(t, fake.params, 2)
}

func TestOpenAIDoesNotRetryAuth(t *testing.T) {
	fake := &fakeCompletions{errs: []error{&openai.Error{StatusCode: http.StatusUnauthorized}}}
	m := newOpenAI(fake, OpenAIConfig{}, nil)

	_, err := m.Generate(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.Len(t, fake.params, 1)
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{}, nil)
	assert.Error(t, err)
	_, err = NewAnthropic(AnthropicConfig{}, nil)
	assert.Error(t, err)
}

func TestAnthropicDecide(t *testing.T) {
	input, _ := json.Marshal(map[string]any{"web_url": "https://docs.example/thumb"})
	fake := &fakeMessages{responses: []*anthropicsdk.Message{{
		Content: []anthropicsdk.ContentBlockUnion{
			{Type: "text", Text: "Downloading the docs."},
			{Type: "tool_use", ID: "toolu_1", Name: sleuth.FetchToolName, Input: input},
		},
		Usage: anthropicsdk.Usage{InputTokens: 40, OutputTokens: 8},
	}}}
	m := newAnthropic(fake, AnthropicConfig{Model: "claude-test"}, nil)

	d, err := m.Decide(context.Background(), sleuth.DecisionRequest{
		Tools:        testTools(),
		Choice:       sleuth.NoTools(),
		Conversation: testConversation(),
	})
	require.NoError(t, err)
	require.Len(t, d.ToolCalls, 1)
	assert.Equal(t, "https://docs.example/thumb", d.ToolCalls[0].Arguments.String("web_url"))
	assert.Equal(t, "Downloading the docs.", d.Content)
	assert.Equal(t, 40, d.Usage.InputTokens)

	p := fake.params[0]
	assert.Equal(t, anthropicsdk.Model("claude-test"), p.Model)
	assert.NotNil(t, p.ToolChoice.OfNone)
	// goal, assistant tool_use, tool result merged with nudge
	require.Len(t, p.Messages, 3)
	assert.Equal(t, anthropicsdk.MessageParamRoleUser, p.Messages[2].Role)
	assert.Len(t, p.Messages[2].Content, 2)
}

func TestAnthropicGenerate(t *testing.T) {
	fake := &fakeMessages{responses: []*anthropicsdk.Message{{
		Content: []anthropicsdk.ContentBlockUnion{{Type: "text", Text: "VERDICT: DISCARD\nREASON: unrelated"}},
	}}}
	m := newAnthropic(fake, AnthropicConfig{}, nil)

	resp, err := m.Generate(context.Background(), "sys", "user")
	require.NoError(t, err)
	v, ok := sleuth.ParseVerdict(resp.Text)
	require.True(t, ok)
	assert.Equal(t, sleuth.VerdictDiscard, v.Kind)
	require.Len(t, fake.params[0].System, 1)
	assert.Equal(t, "sys", fake.params[0].System[0].Text)
}

func TestParseArguments(t *testing.T) {
	args, err := parseArguments("t", "")
	require.NoError(t, err)
	assert.Equal(t, sleuth.Arguments{}, args)

	args, err = parseArguments("t", `{"a":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, "x", args.String("a"))

	args, err = parseArguments("t", "null")
	require.NoError(t, err)
	assert.Equal(t, sleuth.Arguments{}, args)

	_, err = parseArguments("t", "{bad")
	assert.ErrorContains(t, err, `malformed arguments for tool "t"`)
}

func malformedOpenAICompletion() *openai.ChatCompletion {
	return &openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			ToolCalls: []openai.ChatCompletionMessageToolCall{{
				ID: "call_1",
				Function: openai.ChatCompletionMessageToolCallFunction{
					Name:      sleuth.SearchToolName,
					Arguments: `{"search_string": "azure`,
				},
			}},
		},
	}}}
}

func TestDecideRejectsMalformedArguments(t *testing.T) {
	fake := &fakeCompletions{responses: []*openai.ChatCompletion{malformedOpenAICompletion()}}
	_, err := newOpenAI(fake, OpenAIConfig{}, nil).Decide(context.Background(), sleuth.DecisionRequest{
		Tools:        testTools(),
		Conversation: testConversation(),
	})
	assert.ErrorContains(t, err, "malformed arguments")

	msgs := &fakeMessages{responses: []*anthropicsdk.Message{{
		Content: []anthropicsdk.ContentBlockUnion{
			{Type: "tool_use", ID: "toolu_1", Name: sleuth.SearchToolName, Input: json.RawMessage(`{"search_string":`)},
		},
	}}}
	_, err = newAnthropic(msgs, AnthropicConfig{}, nil).Decide(context.Background(), sleuth.DecisionRequest{
		Tools:        testTools(),
		Conversation: testConversation(),
	})
	assert.ErrorContains(t, err, "malformed arguments")
}

type countingSearch struct{ calls int }

func (c *countingSearch) Search(context.Context, string, int) ([]sleuth.SearchResult, error) {
	c.calls++
	return nil, nil
}

func TestMalformedArgumentsEndRunWithoutCost(t *testing.T) {
	fake := &fakeCompletions{responses: []*openai.ChatCompletion{
		malformedOpenAICompletion(), malformedOpenAICompletion(), malformedOpenAICompletion(),
	}}
	search := &countingSearch{}
	agent := sleuth.New(
		sleuth.WithDecisionMaker(newOpenAI(fake, OpenAIConfig{}, nil)),
		sleuth.WithSearchProvider(search),
	)

	res, err := agent.Run(context.Background(), sleuth.NewGoal("Azure OpenAI", "Temperature"), agent.Tools(), 3)
	require.NoError(t, err)
	assert.Equal(t, sleuth.StatusError, res.Status)
	var dme *sleuth.DecisionMakerError
	require.ErrorAs(t, res.Cause, &dme)
	assert.Equal(t, 0, res.BudgetUsed)
	assert.Zero(t, search.calls)
	assert.Len(t, fake.params, 1)
}
