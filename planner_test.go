package sleuth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	replies []string
	err     error
	prompts []string
	systems []string
}

func (s *scriptedLLM) Generate(_ context.Context, systemPrompt, userPrompt string) (LLMResponse, error) {
	s.systems = append(s.systems, systemPrompt)
	s.prompts = append(s.prompts, userPrompt)
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	i := len(s.prompts) - 1
	if i >= len(s.replies) {
		return LLMResponse{}, errors.New("no scripted response available")
	}
	return LLMResponse{Text: s.replies[i], Usage: Usage{InputTokens: 10, OutputTokens: 2}}, nil
}

func plannerRequest(choice ToolChoice) DecisionRequest {
	goal := NewGoal("Azure OpenAI", "Temperature")
	return DecisionRequest{
		Goal: goal,
		Tools: []ToolDescriptor{
			NewWebSearchTool(nil).Descriptor(),
			NewDocumentFetchTool(nil, 0, nil).Descriptor(),
		},
		Choice:          choice,
		Conversation:    NewConversation(goal.Prompt(23)),
		BudgetRemaining: 23,
	}
}

func TestPlannerToolCall(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"<think>search first</think>\nAction: SEARCH_WEB_FOR_DOCUMENTATION\nArguments: {\"search_string\": \"Azure OpenAI temperature\"}"}}
	p := NewPromptDecisionMaker(llm, nil)

	d, err := p.Decide(context.Background(), plannerRequest(Auto()))
	require.NoError(t, err)
	require.Len(t, d.ToolCalls, 1)
	assert.Equal(t, SearchToolName, d.ToolCalls[0].Name)
	assert.Equal(t, "Azure OpenAI temperature", d.ToolCalls[0].Arguments.String("search_string"))
	assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 2}, d.Usage)

	assert.Equal(t, SystemPrompt, llm.systems[0])
	assert.Contains(t, llm.prompts[0], FetchToolName)
	assert.Contains(t, llm.prompts[0], "Attempts remaining: 23")
	assert.Contains(t, llm.prompts[0], "User: The overall goal is to find")
}

func TestPlannerAnswer(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Action: Answer\nVERDICT: ANSWER_FOUND\nVALUE: 1.0"}}
	d, err := NewPromptDecisionMaker(llm, nil).Decide(context.Background(), plannerRequest(Auto()))
	require.NoError(t, err)
	assert.True(t, d.Final())
	require.NotNil(t, d.Verdict)
	assert.Equal(t, AnswerFound("1.0"), *d.Verdict)
}

func TestPlannerBareVerdictIsAnswer(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"VERDICT: INCONCLUSIVE"}}
	d, err := NewPromptDecisionMaker(llm, nil).Decide(context.Background(), plannerRequest(Auto()))
	require.NoError(t, err)
	require.NotNil(t, d.Verdict)
	assert.Equal(t, VerdictInconclusive, d.Verdict.Kind)
}

func TestPlannerForcedSearchFallsBack(t *testing.T) {
	tests := map[string]string{
		"unparseable": "I think I know this one.",
		"wrong tool":  "Action: download_documentation_from_web\nArguments: {\"web_url\": \"https://x.example\"}",
	}
	for name, reply := range tests {
		t.Run(name, func(t *testing.T) {
			llm := &scriptedLLM{replies: []string{reply}}
			d, err := NewPromptDecisionMaker(llm, nil).Decide(context.Background(), plannerRequest(Forced(SearchToolName)))
			require.NoError(t, err)
			require.Len(t, d.ToolCalls, 1)
			assert.Equal(t, SearchToolName, d.ToolCalls[0].Name)
			assert.Equal(t, "Azure OpenAI", d.ToolCalls[0].Arguments.String("search_string"))
			assert.Contains(t, llm.prompts[0], "You MUST call the tool "+SearchToolName)
		})
	}
}

func TestPlannerForcedOtherToolMismatch(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Action: Answer\nVERDICT: ANSWER_FOUND\nVALUE: 1"}}
	_, err := NewPromptDecisionMaker(llm, nil).Decide(context.Background(), plannerRequest(Forced(FetchToolName)))
	assert.ErrorContains(t, err, "ignored required tool")
}

func TestPlannerNoToolsDropsToolRequest(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Action: search_web_for_documentation\nArguments: {\"search_string\": \"x\"}"}}
	d, err := NewPromptDecisionMaker(llm, nil).Decide(context.Background(), plannerRequest(NoTools()))
	require.NoError(t, err)
	assert.True(t, d.Final())
	assert.Nil(t, d.Verdict)
	assert.Contains(t, llm.prompts[0], "Tools are not available on this turn")
}

func TestPlannerErrors(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := NewPromptDecisionMaker(&scriptedLLM{err: boom}, nil).Decide(context.Background(), plannerRequest(Auto()))
	assert.ErrorIs(t, err, boom)

	_, err = NewPromptDecisionMaker(&scriptedLLM{replies: []string{"hmm"}}, nil).Decide(context.Background(), plannerRequest(Auto()))
	assert.ErrorContains(t, err, "unable to parse planner output")

	_, err = NewPromptDecisionMaker(&scriptedLLM{replies: []string{"Action: search_web_for_documentation\nArguments: {not json}"}}, nil).
		Decide(context.Background(), plannerRequest(Auto()))
	assert.ErrorContains(t, err, "not a JSON object")
}

func TestGetContentFallsBackToReasoning(t *testing.T) {
	assert.Equal(t, "answer", getContent(LLMResponse{Text: "<think>x</think> answer"}, nil, "t"))
	assert.Equal(t, "from reasoning", getContent(LLMResponse{Text: "<think>only</think>", Reasoning: "from reasoning"}, nil, "t"))
	assert.Empty(t, getContent(LLMResponse{}, nil, "t"))
}

func TestPlannerDrivesAgent(t *testing.T) {
	const page = "https://learn.example/azure/openai/reference"
	llm := &scriptedLLM{replies: []string{
		"Action: search_web_for_documentation\nArguments: {\"search_string\": \"Azure OpenAI\"}",
		"Action: download_documentation_from_web\nArguments: {\"web_url\": \"" + page + "\"}",
	}}
	agent := New(
		WithDecisionMaker(NewPromptDecisionMaker(llm, nil)),
		WithAnalyzer(defaultAnalyzer(t)),
		WithSearchProvider(staticSearch(page)),
		WithFetchProvider(&fakeFetch{pages: map[string]FetchResult{page: okPage("The default value is 1.")}}),
	)
	res, err := agent.Answer(context.Background(), NewGoal("Azure OpenAI", "Temperature"))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "1", res.Answer)
	assert.Equal(t, Usage{InputTokens: 20, OutputTokens: 4}, res.Usage)
	assert.Contains(t, llm.prompts[1], "Tool result ("+SearchToolName+"):\n"+page)
}
