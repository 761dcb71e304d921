package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/graph"
	"golang.org/x/sync/errgroup"
)

// ToolExecutor runs a single tool call. *registry.Registry implements it.
type ToolExecutor interface {
	Execute(ctx context.Context, call domain.ToolCall) (string, error)
}

// errAbandoned marks a call that had not finished when the step context ended.
var errAbandoned = errors.New("abandoned: step ended before the call completed")

// NewToolNode returns a node that executes every tool call requested by the
// last assistant message. Calls run concurrently; results are appended in
// call order. Per-call failures become error-flagged tool results.
func NewToolNode(tools ToolExecutor, opts ...Option) graph.NodeFunc {
	cfg := newConfig(opts)

	return func(ctx context.Context, state *domain.State) ([]domain.Message, error) {
		last, ok := state.Last()
		if !ok || !last.HasToolCalls() {
			return nil, domain.ErrNoToolCalls
		}

		b := &batch{
			cfg:      cfg,
			threadID: state.ThreadID,
			calls:    last.ToolCalls,
			results:  make([]domain.Message, len(last.ToolCalls)),
			finished: make([]bool, len(last.ToolCalls)),
		}
		return b.run(ctx, tools), nil
	}
}

// batch collects the results of one step's calls, indexed by call position.
type batch struct {
	cfg      *config
	threadID string
	calls    []domain.ToolCall

	mu       sync.Mutex
	results  []domain.Message
	finished []bool
	sealed   bool
}

func (b *batch) run(ctx context.Context, tools ToolExecutor) []domain.Message {
	var g errgroup.Group
	if b.cfg.concurrency > 0 {
		g.SetLimit(b.cfg.concurrency)
	}

	// g.Go blocks once the limit is reached, so scheduling happens off the
	// caller's goroutine to keep the ctx.Done branch below responsive.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, call := range b.calls {
			g.Go(func() error {
				b.execute(ctx, tools, i, call)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return b.seal()
}

func (b *batch) execute(ctx context.Context, tools ToolExecutor, i int, call domain.ToolCall) {
	if ctx.Err() != nil {
		return
	}

	b.emit(ctx, b.cfg.hooks.OnToolCall, &domain.ToolEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventToolCall, ThreadID: b.threadID},
		CallID:    call.ID,
		ToolName:  call.Name,
		Arguments: call.Arguments,
	})

	start := time.Now()
	output, err := b.invoke(ctx, tools, call)

	var msg domain.Message
	if err != nil {
		msg = domain.ToolErrorMessage(call.ID, err)
		b.cfg.logger.Debug("tool call failed", "thread_id", b.threadID, "tool", call.Name, "call_id", call.ID, "err", err)
	} else {
		msg = domain.ToolResultMessage(call.ID, output)
	}

	b.mu.Lock()
	if b.sealed {
		b.mu.Unlock()
		return
	}
	b.results[i] = msg
	b.finished[i] = true
	b.mu.Unlock()

	b.emit(ctx, b.cfg.hooks.OnToolReturn, &domain.ToolEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventToolReturn, ThreadID: b.threadID},
		CallID:    call.ID,
		ToolName:  call.Name,
		Output:    msg.Content,
		IsError:   msg.IsError,
		Kind:      domain.KindOf(err),
		Duration:  time.Since(start),
	})
}

// invoke runs the call and guarantees a classified *domain.ToolError on failure.
func (b *batch) invoke(ctx context.Context, tools ToolExecutor, call domain.ToolCall) (output string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			output, err = "", &domain.ToolError{
				Kind:   domain.KindToolExecutionFailure,
				Tool:   call.Name,
				CallID: call.ID,
				Err:    fmt.Errorf("panic: %v", rec),
			}
		}
	}()

	output, err = tools.Execute(ctx, call)
	if err == nil {
		return output, nil
	}

	var toolErr *domain.ToolError
	if errors.As(err, &toolErr) {
		return "", err
	}
	return "", &domain.ToolError{Kind: domain.KindToolExecutionFailure, Tool: call.Name, CallID: call.ID, Err: err}
}

// seal freezes the results. Calls that have not finished are reported as
// abandoned failures; late completions are discarded.
func (b *batch) seal() []domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sealed = true
	out := make([]domain.Message, len(b.results))
	for i, call := range b.calls {
		if b.finished[i] {
			out[i] = b.results[i]
			continue
		}
		out[i] = domain.ToolErrorMessage(call.ID, &domain.ToolError{
			Kind:   domain.KindToolExecutionFailure,
			Tool:   call.Name,
			CallID: call.ID,
			Err:    errAbandoned,
		})
		b.cfg.logger.Warn("tool call abandoned", "thread_id", b.threadID, "tool", call.Name, "call_id", call.ID)
	}
	return out
}

func (b *batch) emit(ctx context.Context, hook func(context.Context, *domain.ToolEvent), e *domain.ToolEvent) {
	if hook != nil {
		hook(ctx, e)
	}
}
