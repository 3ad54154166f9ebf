package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/smhanov/sleuth"
	"github.com/smhanov/sleuth/config"
	"github.com/smhanov/sleuth/fetch"
	"github.com/smhanov/sleuth/llm"
	"github.com/smhanov/sleuth/search"
)

// AgentFactory builds the agent for a command. onEvent may be nil.
type AgentFactory func(cfg *config.Config, logger *slog.Logger, onEvent func(sleuth.Event)) (*sleuth.Agent, error)

// DefaultAgentFactory wires the configured model, search provider, and
// fetcher into an agent.
func DefaultAgentFactory(cfg *config.Config, logger *slog.Logger, onEvent func(sleuth.Event)) (*sleuth.Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	decider, model, err := newDecider(cfg, logger)
	if err != nil {
		return nil, err
	}
	searcher, err := newSearcher(cfg.Search)
	if err != nil {
		return nil, err
	}

	opts := []sleuth.Option{
		sleuth.WithDecisionMaker(decider),
		sleuth.WithAnalyzer(sleuth.NewLLMAnalyzer(model, 0, logger)),
		sleuth.WithSearchProvider(searcher, sleuth.WithSearchLimit(cfg.Agent.SearchResults)),
		sleuth.WithFetchProvider(fetch.NewHTTP()),
		sleuth.WithRetryBudget(cfg.Agent.RetryBudget),
		sleuth.WithToolTimeout(cfg.Agent.ToolTimeout),
		sleuth.WithFetchTimeout(cfg.Agent.FetchTimeout),
		sleuth.WithLogger(logger),
		sleuth.WithEventHandler(onEvent),
	}
	if cfg.Agent.SearchFirst {
		opts = append(opts, sleuth.WithToolChoicePolicy(sleuth.SearchFirst(sleuth.SearchToolName)))
	}
	return sleuth.New(opts...), nil
}

// newDecider returns the decision maker and the text model that backs the
// analyzer. Both share one client.
func newDecider(cfg *config.Config, logger *slog.Logger) (sleuth.DecisionMaker, sleuth.LLMProvider, error) {
	d := cfg.Decider
	temperature := d.Temperature

	switch strings.ToLower(d.Type) {
	case "openai", "prompt":
		m, err := llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:      d.OpenAI.APIKey,
			BaseURL:     d.OpenAI.BaseURL,
			Model:       d.Model,
			MaxTokens:   d.MaxTokens,
			Temperature: &temperature,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if strings.EqualFold(d.Type, "prompt") {
			return sleuth.NewPromptDecisionMaker(m, logger), m, nil
		}
		return m, m, nil
	case "azure":
		m, err := llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:          d.Azure.APIKey,
			Model:           d.Azure.Deployment,
			AzureEndpoint:   d.Azure.Endpoint,
			AzureAPIVersion: d.Azure.APIVersion,
			MaxTokens:       d.MaxTokens,
			Temperature:     &temperature,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	case "anthropic":
		m, err := llm.NewAnthropic(llm.AnthropicConfig{
			APIKey:      d.Anthropic.APIKey,
			BaseURL:     d.Anthropic.BaseURL,
			Model:       d.Model,
			MaxTokens:   d.MaxTokens,
			Temperature: &temperature,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	default:
		return nil, nil, fmt.Errorf("unknown decider type %q", d.Type)
	}
}

func newSearcher(cfg config.SearchConfig) (sleuth.SearchProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "bing":
		b := search.NewBing(cfg.BingKey)
		if cfg.BingEndpoint != "" {
			b.Endpoint = cfg.BingEndpoint
		}
		return b, nil
	case "brave":
		return search.NewBrave(cfg.BraveKey), nil
	case "tavily":
		return search.NewTavily(cfg.TavilyKey, cfg.TavilyDepth), nil
	case "duckduckgo":
		return search.NewDuckDuckGo(), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}
