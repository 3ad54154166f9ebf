package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/smhanov/sleuth"
)

// OpenAIConfig configures an OpenAI or Azure OpenAI chat model.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // Optional: for proxies and OpenAI-compatible servers
	// Model is the model name, or the deployment name on Azure.
	Model string
	// AzureEndpoint selects Azure OpenAI, e.g. https://my.openai.azure.com.
	AzureEndpoint   string
	AzureAPIVersion string
	MaxTokens       int
	MaxRetries      int
	Temperature     *float64
	HTTPClient      *http.Client
}

type openaiChatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI is a native tool-calling DecisionMaker backed by the chat
// completions API. It also implements sleuth.LLMProvider for the analyzer.
type OpenAI struct {
	completions openaiChatCompletions
	model       string
	maxTokens   int
	temperature float64
	retry       retrier
	logger      *slog.Logger
}

const (
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultAzureAPIVersion  = "2024-10-21"
	defaultOpenAIMaxRetries = 3
)

// NewOpenAI constructs an OpenAI-backed decision maker.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key required")
	}

	var opts []option.RequestOption
	if endpoint := strings.TrimSpace(cfg.AzureEndpoint); endpoint != "" {
		version := cfg.AzureAPIVersion
		if version == "" {
			version = defaultAzureAPIVersion
		}
		opts = append(opts, azure.WithEndpoint(endpoint, version), azure.WithAPIKey(apiKey))
	} else {
		opts = append(opts, option.WithAPIKey(apiKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	// Retries are handled here so they can be logged and bounded per run.
	opts = append(opts, option.WithMaxRetries(0))

	client := openai.NewClient(opts...)
	return newOpenAI(&client.Chat.Completions, cfg, logger), nil
}

func newOpenAI(completions openaiChatCompletions, cfg OpenAIConfig, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultOpenAIMaxRetries
	}
	logger = logger.With("component", "openai", "model", model)
	return &OpenAI{
		completions: completions,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		retry:       retrier{max: retries, retryable: isOpenAIRetryable, logger: logger},
		logger:      logger,
	}
}

// Decide implements sleuth.DecisionMaker.
func (m *OpenAI) Decide(ctx context.Context, req sleuth.DecisionRequest) (sleuth.Decision, error) {
	params := m.baseParams(sleuth.SystemPrompt, convertConversationToOpenAI(req.Conversation))
	if len(req.Tools) > 0 {
		params.Tools = convertToolsToOpenAI(req.Tools)
		params.ToolChoice = openAIToolChoice(req.Choice)
	}

	var completion *openai.ChatCompletion
	err := m.retry.do(ctx, func(ctx context.Context) error {
		var err error
		completion, err = m.completions.New(ctx, params)
		return err
	})
	if err != nil {
		return sleuth.Decision{}, fmt.Errorf("openai: %w", err)
	}
	return convertOpenAIDecision(completion)
}

// Generate implements sleuth.LLMProvider.
func (m *OpenAI) Generate(ctx context.Context, systemPrompt, userPrompt string) (sleuth.LLMResponse, error) {
	params := m.baseParams(systemPrompt, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(userPrompt)})

	var completion *openai.ChatCompletion
	err := m.retry.do(ctx, func(ctx context.Context) error {
		var err error
		completion, err = m.completions.New(ctx, params)
		return err
	})
	if err != nil {
		return sleuth.LLMResponse{}, fmt.Errorf("openai: %w", err)
	}
	d, err := convertOpenAIDecision(completion)
	if err != nil {
		return sleuth.LLMResponse{}, err
	}
	return sleuth.LLMResponse{Text: d.Content, Usage: d.Usage}, nil
}

func (m *OpenAI) baseParams(system string, messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(m.model),
		MaxCompletionTokens: openai.Int(int64(m.maxTokens)),
		Temperature:         openai.Float(m.temperature),
		Messages:            append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(system)}, messages...),
	}
}

func openAIToolChoice(c sleuth.ToolChoice) openai.ChatCompletionToolChoiceOptionUnionParam {
	switch c.Mode {
	case sleuth.ToolChoiceForced:
		return openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: c.Tool},
			},
		}
	case sleuth.ToolChoiceNone:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}
	default:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}
}

func convertConversationToOpenAI(conv *sleuth.Conversation) []openai.ChatCompletionMessageParamUnion {
	var result []openai.ChatCompletionMessageParamUnion
	for _, msg := range conv.Messages() {
		switch msg.Role {
		case sleuth.RoleAssistant:
			result = append(result, buildOpenAIAssistantMessage(msg))
		case sleuth.RoleTool:
			id := ""
			if msg.Result != nil {
				id = msg.Result.CallID
			}
			result = append(result, openai.ToolMessage(msg.Content, id))
		default:
			content := msg.Content
			if strings.TrimSpace(content) == "" {
				content = "."
			}
			result = append(result, openai.UserMessage(content))
		}
	}
	if len(result) == 0 {
		result = append(result, openai.UserMessage("."))
	}
	return result
}

func buildOpenAIAssistantMessage(msg sleuth.Message) openai.ChatCompletionMessageParamUnion {
	assistant := openai.ChatCompletionAssistantMessageParam{}
	if content := strings.TrimSpace(msg.Content); content != "" || len(msg.ToolCalls) == 0 {
		if content == "" {
			content = "."
		}
		assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(content)}
	}
	for _, call := range msg.ToolCalls {
		args, _ := json.Marshal(call.Arguments) //nolint:errcheck // map of JSON values
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: string(args),
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func convertToolsToOpenAI(tools []sleuth.ToolDescriptor) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, def := range tools {
		tool := openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:       def.Name,
				Parameters: shared.FunctionParameters(def.Parameters.Map()),
			},
		}
		if desc := strings.TrimSpace(def.Description); desc != "" {
			tool.Function.Description = openai.Opt(desc)
		}
		result = append(result, tool)
	}
	return result
}

func convertOpenAIDecision(completion *openai.ChatCompletion) (sleuth.Decision, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return sleuth.Decision{}, nil
	}
	msg := completion.Choices[0].Message
	d := sleuth.Decision{
		Content: msg.Content,
		Usage: sleuth.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}
	for _, tc := range msg.ToolCalls {
		args, err := parseArguments(tc.Function.Name, tc.Function.Arguments)
		if err != nil {
			return sleuth.Decision{}, fmt.Errorf("openai: %w", err)
		}
		d.ToolCalls = append(d.ToolCalls, sleuth.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	if len(d.ToolCalls) == 0 {
		if v, ok := sleuth.ParseVerdict(d.Content); ok {
			d.Verdict = &v
		}
	}
	return d, nil
}

func isOpenAIRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}
	return retryableTransport(err)
}
