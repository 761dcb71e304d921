package agent

import (
	"context"
	"fmt"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/graph"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/google/uuid"
)

// ToolSchemas supplies the tool descriptors offered to the model.
// *registry.Registry implements it.
type ToolSchemas interface {
	Schemas() []domain.Tool
}

// NewAgentNode returns a node that asks model for the next assistant message.
// tools may be nil when the model should not call tools.
func NewAgentNode(model ports.Model, tools ToolSchemas, opts ...Option) graph.NodeFunc {
	cfg := newConfig(opts)

	return func(ctx context.Context, state *domain.State) ([]domain.Message, error) {
		req := ports.ModelRequest{
			SystemPrompt: cfg.systemPrompt,
			Messages:     state.Clone().Messages,
		}
		if tools != nil {
			req.Tools = tools.Schemas()
		}

		msg, err := model.Generate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrModelInvocation, err)
		}

		msg, err = normalizeReply(msg)
		if err != nil {
			return nil, err
		}

		cfg.logger.Debug("model replied",
			"thread_id", state.ThreadID,
			"tool_calls", len(msg.ToolCalls),
			"content_len", len(msg.Content),
		)
		return []domain.Message{msg}, nil
	}
}

// normalizeReply enforces the assistant-message contract on a model reply:
// assistant role, and unique non-empty tool call ids.
func normalizeReply(msg domain.Message) (domain.Message, error) {
	switch msg.Role {
	case "":
		msg.Role = domain.RoleAssistant
	case domain.RoleAssistant:
	default:
		return msg, fmt.Errorf("%w: model replied with role '%s'", domain.ErrModelInvocation, msg.Role)
	}
	msg.ToolCallID = ""
	msg.IsError = false

	msg = msg.Clone()
	seen := make(map[string]bool, len(msg.ToolCalls))
	for i := range msg.ToolCalls {
		call := &msg.ToolCalls[i]
		if call.Name == "" {
			return msg, fmt.Errorf("%w: tool call %d has no name", domain.ErrModelInvocation, i)
		}
		if call.ID == "" {
			call.ID = "call_" + uuid.NewString()
		}
		if seen[call.ID] {
			return msg, fmt.Errorf("%w: duplicate tool call id '%s'", domain.ErrModelInvocation, call.ID)
		}
		seen[call.ID] = true
	}
	return msg, nil
}
