// Package anthropic implements ports.Model on top of the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// DefaultMaxTokens is sent when no limit is configured; the API requires one.
const DefaultMaxTokens = 4096

// DefaultModel is used when no model name is given.
const DefaultModel = "claude-sonnet-4-5"

// Model adapts the messages endpoint to ports.Model.
type Model struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature *float64
	reqOpts     []option.RequestOption
	logger      *slog.Logger
}

var _ ports.Model = (*Model)(nil)

// Option configures the model.
type Option func(*Model)

// WithAPIKey sets the credential. Defaults to ANTHROPIC_API_KEY.
func WithAPIKey(key string) Option {
	return func(m *Model) {
		if key != "" {
			m.reqOpts = append(m.reqOpts, option.WithAPIKey(key))
		}
	}
}

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(url string) Option {
	return func(m *Model) {
		if url != "" {
			m.reqOpts = append(m.reqOpts, option.WithBaseURL(url))
		}
	}
}

// WithMaxTokens caps the reply length.
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
	m := &Model{model: model, maxTokens: DefaultMaxTokens, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	m.client = anthropic.NewClient(m.reqOpts...)
	return m
}

// Generate implements ports.Model.
func (m *Model) Generate(ctx context.Context, req ports.ModelRequest) (domain.Message, error) {
	messages, err := buildMessages(req.Messages)
	if err != nil {
		return domain.Message{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: m.maxTokens,
		Messages:  messages,
		Tools:     buildTools(req.Tools),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if m.temperature != nil {
		params.Temperature = anthropic.Float(*m.temperature)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return domain.Message{}, fmt.Errorf("anthropic api error: %w", err)
	}
	m.logger.Debug("anthropic message", "model", m.model, "stop_reason", resp.StopReason,
		"input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)

	var text strings.Builder
	out := domain.Message{Role: domain.RoleAssistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			args, err := json.Marshal(tu.Input)
			if err != nil {
				return domain.Message{}, fmt.Errorf("anthropic: tool input for '%s': %w", tu.Name, err)
			}
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{ID: tu.ID, Name: tu.Name, Arguments: args})
		}
	}
	out.Content = text.String()
	return out, nil
}

// buildMessages converts the conversation record. Consecutive tool results
// are grouped into one user turn, as the API expects every tool_use of an
// assistant turn to be answered by the next message.
func buildMessages(history []domain.Message) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	var results []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range history {
		if msg.Role == domain.RoleTool {
			results = append(results, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
			continue
		}
		flush()

		switch msg.Role {
		case domain.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case domain.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				input := json.RawMessage(tc.Arguments)
				// tool_use input must be an object; the tool result already reports malformed arguments.
				if len(input) == 0 || !json.Valid(input) {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("anthropic: unsupported role '%s' in history", msg.Role)
		}
	}
	flush()
	return out, nil
}

func buildTools(tools []domain.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		tp := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{Properties: map[string]any{}},
		}
		if props, ok := t.Parameters["properties"]; ok {
			tp.InputSchema.Properties = props
		}
		tp.InputSchema.Required = requiredFields(t.Parameters["required"])
		out = append(out, anthropic.ToolUnionParam{OfTool: &tp})
	}
	return out
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
