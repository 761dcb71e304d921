// Package openai implements ports.Model on top of the OpenAI Chat Completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model name is given.
const DefaultModel = openai.ChatModelGPT4oMini

// Model adapts the chat completions endpoint to ports.Model.
type Model struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature *float64
	reqOpts     []option.RequestOption
	logger      *slog.Logger
}

var _ ports.Model = (*Model)(nil)

// Option configures the model.
type Option func(*Model)

// WithAPIKey sets the credential. Defaults to OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(m *Model) {
		if key != "" {
			m.reqOpts = append(m.reqOpts, option.WithAPIKey(key))
		}
	}
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) Option {
	return func(m *Model) {
		if url != "" {
			m.reqOpts = append(m.reqOpts, option.WithBaseURL(url))
		}
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) Option {
	return func(m *Model) {
		m.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(m *Model) {
		m.temperature = &t
	}
}

// WithRequestOptions passes raw SDK options (retries, headers, http client).
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(m *Model) {
		m.reqOpts = append(m.reqOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// New creates a model bound to the given model name.
func New(model string, opts ...Option) *Model {
	if model == "" {
		model = DefaultModel
	}
	m := &Model{model: model, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	m.client = openai.NewClient(m.reqOpts...)
	return m
}

// Generate implements ports.Model.
func (m *Model) Generate(ctx context.Context, req ports.ModelRequest) (domain.Message, error) {
	params, err := m.buildParams(req)
	if err != nil {
		return domain.Message{}, err
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return domain.Message{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Message{}, errors.New("openai api error: no choices returned")
	}

	choice := resp.Choices[0]
	m.logger.Debug("openai completion", "model", m.model, "finish_reason", choice.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)

	out := domain.AssistantMessage(choice.Message.Content)
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: rawArguments(tc.Function.Arguments),
		})
	}
	return out, nil
}

func (m *Model) buildParams(req ports.ModelRequest) (openai.ChatCompletionNewParams, error) {
	messages, err := buildMessages(req)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    m.model,
		Messages: messages,
	}
	if m.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(m.maxTokens)
	}
	if m.temperature != nil {
		params.Temperature = openai.Float(*m.temperature)
	}

	for _, t := range req.Tools {
		schema := t.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(schema),
			},
		})
	}
	return params, nil
}

// buildMessages converts the conversation record. Tool results keep their
// position right after the assistant message that requested them.
func buildMessages(req ports.ModelRequest) ([]openai.ChatCompletionMessageParamUnion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case domain.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case domain.RoleAssistant:
			if !msg.HasToolCalls() {
				messages = append(messages, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(rawArguments(string(tc.Arguments))),
					},
				})
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case domain.RoleTool:
			content := msg.Content
			if msg.IsError {
				content = "ERROR: " + content
			}
			messages = append(messages, openai.ToolMessage(content, msg.ToolCallID))
		default:
			return nil, fmt.Errorf("openai: unsupported role '%s' in history", msg.Role)
		}
	}
	return messages, nil
}

// rawArguments normalizes the JSON argument string of a call.
func rawArguments(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(s)
}
