package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// LoggingHooks returns lifecycle hooks that log every event at Info level
// (failures at Warn/Error).
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			logger.InfoContext(ctx, "step_start", "thread_id", e.ThreadID, "step", e.Step, "node_id", e.NodeID)
		},
		OnStepEnd: func(ctx context.Context, e *domain.StepEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "step_failed", "thread_id", e.ThreadID, "step", e.Step, "node_id", e.NodeID, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "step_end",
				"thread_id", e.ThreadID,
				"step", e.Step,
				"node_id", e.NodeID,
				"next_node", e.NextNode,
				"appended", e.Appended,
				"duration", e.Duration,
			)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.InfoContext(ctx, "tool_call", "thread_id", e.ThreadID, "tool_name", e.ToolName, "call_id", e.CallID)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			logger.InfoContext(ctx, "tool_return",
				"thread_id", e.ThreadID,
				"tool_name", e.ToolName,
				"call_id", e.CallID,
				"is_error", e.IsError,
				"duration", e.Duration,
			)
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "run_aborted", "thread_id", e.ThreadID, "steps", e.Steps, "kind", string(e.Kind), "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "run_end", "thread_id", e.ThreadID, "steps", e.Steps)
		},
	}
}
