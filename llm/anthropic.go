package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/smhanov/sleuth"
)

// AnthropicConfig configures a Claude model.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	MaxRetries  int
	Temperature *float64
	HTTPClient  *http.Client
}

type anthropicMessages interface {
	New(ctx context.Context, params anthropicsdk.MessageNewParams, opts ...option.RequestOption) (*anthropicsdk.Message, error)
}

// Anthropic is a native tool-calling DecisionMaker backed by the Messages
// API. It also implements sleuth.LLMProvider for the analyzer.
type Anthropic struct {
	messages    anthropicMessages
	model       anthropicsdk.Model
	maxTokens   int
	temperature float64
	retry       retrier
	logger      *slog.Logger
}

const (
	defaultAnthropicModel      = "claude-3-5-haiku-latest"
	defaultAnthropicMaxRetries = 3
)

// NewAnthropic constructs an Anthropic-backed decision maker.
func NewAnthropic(cfg AnthropicConfig, logger *slog.Logger) (*Anthropic, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic: api key required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	client := anthropicsdk.NewClient(opts...)
	return newAnthropic(&client.Messages, cfg, logger), nil
}

func newAnthropic(messages anthropicMessages, cfg AnthropicConfig, logger *slog.Logger) *Anthropic {
	if logger == nil {
		logger = slog.Default()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultAnthropicModel
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
		retries = defaultAnthropicMaxRetries
	}
	logger = logger.With("component", "anthropic", "model", model)
	return &Anthropic{
		messages:    messages,
		model:       anthropicsdk.Model(model),
		maxTokens:   maxTokens,
		temperature: temperature,
		retry:       retrier{max: retries, retryable: isAnthropicRetryable, logger: logger},
		logger:      logger,
	}
}

// Decide implements sleuth.DecisionMaker.
func (m *Anthropic) Decide(ctx context.Context, req sleuth.DecisionRequest) (sleuth.Decision, error) {
	params := m.baseParams(sleuth.SystemPrompt, convertConversationToAnthropic(req.Conversation))
	if len(req.Tools) > 0 {
		tools, err := convertToolsToAnthropic(req.Tools)
		if err != nil {
			return sleuth.Decision{}, err
		}
		params.Tools = tools
		params.ToolChoice = anthropicToolChoice(req.Choice)
	}

	msg, err := m.send(ctx, params)
	if err != nil {
		return sleuth.Decision{}, err
	}
	return convertAnthropicDecision(msg)
}

// Generate implements sleuth.LLMProvider.
func (m *Anthropic) Generate(ctx context.Context, systemPrompt, userPrompt string) (sleuth.LLMResponse, error) {
	params := m.baseParams(systemPrompt, []anthropicsdk.MessageParam{{
		Role:    anthropicsdk.MessageParamRoleUser,
		Content: []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(userPrompt)},
	}})
	msg, err := m.send(ctx, params)
	if err != nil {
		return sleuth.LLMResponse{}, err
	}
	d, err := convertAnthropicDecision(msg)
	if err != nil {
		return sleuth.LLMResponse{}, err
	}
	return sleuth.LLMResponse{Text: d.Content, Usage: d.Usage}, nil
}

func (m *Anthropic) send(ctx context.Context, params anthropicsdk.MessageNewParams) (*anthropicsdk.Message, error) {
	var msg *anthropicsdk.Message
	err := m.retry.do(ctx, func(ctx context.Context) error {
		var err error
		msg, err = m.messages.New(ctx, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	return msg, nil
}

func (m *Anthropic) baseParams(system string, messages []anthropicsdk.MessageParam) anthropicsdk.MessageNewParams {
	return anthropicsdk.MessageNewParams{
		Model:       m.model,
		MaxTokens:   int64(m.maxTokens),
		Messages:    messages,
		System:      []anthropicsdk.TextBlockParam{{Text: system}},
		Temperature: param.NewOpt(m.temperature),
	}
}

func anthropicToolChoice(c sleuth.ToolChoice) anthropicsdk.ToolChoiceUnionParam {
	switch c.Mode {
	case sleuth.ToolChoiceForced:
		return anthropicsdk.ToolChoiceUnionParam{OfTool: &anthropicsdk.ToolChoiceToolParam{Name: c.Tool}}
	case sleuth.ToolChoiceNone:
		return anthropicsdk.ToolChoiceUnionParam{OfNone: &anthropicsdk.ToolChoiceNoneParam{}}
	default:
		return anthropicsdk.ToolChoiceUnionParam{OfAuto: &anthropicsdk.ToolChoiceAutoParam{}}
	}
}

// convertConversationToAnthropic maps the conversation onto alternating
// user and assistant turns. Tool results and nudges that follow each other
// are merged into one user turn.
func convertConversationToAnthropic(conv *sleuth.Conversation) []anthropicsdk.MessageParam {
	var out []anthropicsdk.MessageParam
	appendBlocks := func(role anthropicsdk.MessageParamRole, blocks ...anthropicsdk.ContentBlockParamUnion) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, anthropicsdk.MessageParam{Role: role, Content: blocks})
	}

	for _, msg := range conv.Messages() {
		switch msg.Role {
		case sleuth.RoleAssistant:
			var blocks []anthropicsdk.ContentBlockParamUnion
			if text := strings.TrimSpace(msg.Content); text != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(text))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(call.ID, map[string]any(call.Arguments), call.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropicsdk.NewTextBlock("."))
			}
			appendBlocks(anthropicsdk.MessageParamRoleAssistant, blocks...)
		case sleuth.RoleTool:
			if msg.Result == nil {
				appendBlocks(anthropicsdk.MessageParamRoleUser, anthropicsdk.NewTextBlock(msg.Content))
				continue
			}
			isError := msg.Result.Status == sleuth.ToolFailed
			appendBlocks(anthropicsdk.MessageParamRoleUser, anthropicsdk.NewToolResultBlock(msg.Result.CallID, msg.Content, isError))
		default:
			text := msg.Content
			if strings.TrimSpace(text) == "" {
				text = "."
			}
			appendBlocks(anthropicsdk.MessageParamRoleUser, anthropicsdk.NewTextBlock(text))
		}
	}
	if len(out) == 0 {
		appendBlocks(anthropicsdk.MessageParamRoleUser, anthropicsdk.NewTextBlock("."))
	}
	return out
}

func convertToolsToAnthropic(tools []sleuth.ToolDescriptor) ([]anthropicsdk.ToolUnionParam, error) {
	out := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, def := range tools {
		data, err := json.Marshal(def.Parameters.Map())
		if err != nil {
			return nil, fmt.Errorf("tool %s schema: %w", def.Name, err)
		}
		var schema anthropicsdk.ToolInputSchemaParam
		if err := json.Unmarshal(data, &schema); err != nil {
			return nil, fmt.Errorf("tool %s schema: %w", def.Name, err)
		}
		tool := anthropicsdk.ToolParam{Name: def.Name, InputSchema: schema}
		if strings.TrimSpace(def.Description) != "" {
			tool.Description = anthropicsdk.String(def.Description)
		}
		out = append(out, anthropicsdk.ToolUnionParam{OfTool: &tool})
	}
	return out, nil
}

func convertAnthropicDecision(msg *anthropicsdk.Message) (sleuth.Decision, error) {
	if msg == nil {
		return sleuth.Decision{}, nil
	}
	var text []string
	d := sleuth.Decision{
		Usage: sleuth.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "tool_use":
			args, err := parseArguments(block.Name, string(block.Input))
			if err != nil {
				return sleuth.Decision{}, fmt.Errorf("anthropic: %w", err)
			}
			d.ToolCalls = append(d.ToolCalls, sleuth.ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		case "text":
			text = append(text, block.Text)
		}
	}
	d.Content = strings.Join(text, "")
	if len(d.ToolCalls) == 0 {
		if v, ok := sleuth.ParseVerdict(d.Content); ok {
			d.Verdict = &v
		}
	}
	return d, nil
}

func isAnthropicRetryable(err error) bool {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}
	return retryableTransport(err)
}
