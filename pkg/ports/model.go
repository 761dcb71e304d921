package ports

import (
	"context"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// ModelRequest is the normalized input handed to a Model.
type ModelRequest struct {
	// SystemPrompt is optional and never part of the stored history.
	SystemPrompt string

	// Messages is the full conversation record, oldest first.
	Messages []domain.Message

	// Tools lists the schemas the model may call.
	Tools []domain.Tool
}

// Model is the reasoning component consulted by the agent node.
// Implementations return exactly one assistant message, optionally carrying tool calls.
// Retry and rate-limit behavior belong to the implementation.
type Model interface {
	Generate(ctx context.Context, req ModelRequest) (domain.Message, error)
}

// ModelFunc adapts a plain function to the Model interface.
type ModelFunc func(ctx context.Context, req ModelRequest) (domain.Message, error)

// Generate implements Model.
func (f ModelFunc) Generate(ctx context.Context, req ModelRequest) (domain.Message, error) {
	return f(ctx, req)
}
