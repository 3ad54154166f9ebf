// Package sleuth provides a documentation-discovery agent that searches the
// web for authoritative documentation and reads it until it finds the
// documented default of a configuration parameter.
//
// A run answers one Goal, such as "what does Azure OpenAI do when Temperature
// is not specified". The answer must come from a downloaded document, never
// from the model's own knowledge.
//
// # Architecture
//
// The agent drives a DecisionMaker through a bounded loop:
//
//  1. The DecisionMaker reads the conversation and either requests tool
//     calls or gives a final answer.
//  2. Tool calls are dispatched to the WebSearchTool or the
//     DocumentFetchTool. Every failure is turned into a ToolResult and fed
//     back to the model.
//  3. Every document retrieved successfully is judged by the ContentAnalyzer.
//     An ANSWER_FOUND verdict ends the run.
//  4. Each attempt that makes no progress costs one unit of the RetryBudget.
//     The run ends with BUDGET_EXHAUSTED when it reaches zero.
//
// # Retry Budget
//
// Failed tool calls, searches that return nothing new, fetches that return a
// non-2xx status or a document already read, and DISCARD or INCONCLUSIVE
// verdicts all consume one unit. So does a final answer that carries no
// ANSWER_FOUND verdict; the model is then told how many attempts remain.
// Successful searches and fetches are free.
//
// # Basic Usage
//
//	model, _ := llm.NewOpenAI(llm.OpenAIConfig{APIKey: key}, nil)
//	agent := sleuth.New(
//	    sleuth.WithDecisionMaker(model),
//	    sleuth.WithAnalyzer(sleuth.NewLLMAnalyzer(model, 0, nil)),
//	    sleuth.WithSearchProvider(search.NewBing(bingKey)),
//	    sleuth.WithFetchProvider(fetch.NewHTTP()),
//	)
//
//	res, err := agent.Answer(ctx, sleuth.NewGoal("Azure OpenAI", "Temperature"))
//	if err == nil && res.Status == sleuth.StatusSuccess {
//	    fmt.Println(res.Answer, res.Source)
//	}
//
// # Interfaces
//
// Implement DecisionMaker to plug in a model with native tool calling, or
// LLMProvider to drive a plain text model through PromptDecisionMaker:
//
//	type LLMProvider interface {
//	    Generate(ctx context.Context, systemPrompt, userPrompt string) (LLMResponse, error)
//	}
//
// Implement SearchProvider and FetchProvider to use other backends. Search
// providers return zero results as an empty slice; fetchers report HTTP
// failure statuses through FetchResult.OK rather than as errors.
//
// See the examples/basic directory for a complete example that runs offline.
package sleuth
