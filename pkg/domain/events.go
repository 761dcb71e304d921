package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepStart  EventType = "step_start"
	EventStepEnd    EventType = "step_end"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
	EventRunEnd     EventType = "run_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	ThreadID  string    `json:"thread_id"`
}

// StepEvent represents the start or end of one executor step.
type StepEvent struct {
	EventBase
	Step     int           `json:"step"`
	NodeID   string        `json:"node_id"`
	NextNode string        `json:"next_node,omitempty"`
	Appended int           `json:"appended,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// ToolEvent represents a tool execution.
type ToolEvent struct {
	EventBase
	CallID    string          `json:"call_id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Output    string          `json:"output,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Kind      ErrorKind       `json:"kind,omitempty"`
	Duration  time.Duration   `json:"duration,omitempty"`
}

// RunEvent is emitted once when a run terminates or aborts.
type RunEvent struct {
	EventBase
	Steps int       `json:"steps"`
	Kind  ErrorKind `json:"kind,omitempty"`
	Err   error     `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
// Tool hooks may be invoked concurrently from the tool node.
type LifecycleHooks struct {
	OnStepStart  func(context.Context, *StepEvent)
	OnStepEnd    func(context.Context, *StepEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnRunEnd     func(context.Context, *RunEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepStart:  chainStep(h.OnStepStart, other.OnStepStart),
		OnStepEnd:    chainStep(h.OnStepEnd, other.OnStepEnd),
		OnToolCall:   chainTool(h.OnToolCall, other.OnToolCall),
		OnToolReturn: chainTool(h.OnToolReturn, other.OnToolReturn),
		OnRunEnd: func(ctx context.Context, e *RunEvent) {
			if h.OnRunEnd != nil {
				h.OnRunEnd(ctx, e)
			}
			if other.OnRunEnd != nil {
				other.OnRunEnd(ctx, e)
			}
		},
	}
}

func chainStep(a, b func(context.Context, *StepEvent)) func(context.Context, *StepEvent) {
	return func(ctx context.Context, e *StepEvent) {
		if a != nil {
			a(ctx, e)
		}
		if b != nil {
			b(ctx, e)
		}
	}
}

func chainTool(a, b func(context.Context, *ToolEvent)) func(context.Context, *ToolEvent) {
	return func(ctx context.Context, e *ToolEvent) {
		if a != nil {
			a(ctx, e)
		}
		if b != nil {
			b(ctx, e)
		}
	}
}
