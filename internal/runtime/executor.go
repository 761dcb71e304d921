package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/graph"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// DefaultMaxSteps bounds a single run when no limit is configured.
const DefaultMaxSteps = 25

// Executor runs threads over a compiled graph.
// It is safe for concurrent use; serializing runs of the same thread is the
// caller's job (see session.Manager.WithLock).
type Executor struct {
	graph       *graph.Graph
	store       ports.CheckpointStore
	maxSteps    int
	stepTimeout time.Duration
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures the Executor.
type Option func(*Executor)

// WithMaxSteps caps the number of steps one run may complete.
func WithMaxSteps(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithStepTimeout bounds every node invocation. Zero disables the bound.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.stepTimeout = d
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = hooks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor for g persisting into store.
func NewExecutor(g *graph.Graph, store ports.CheckpointStore, opts ...Option) *Executor {
	e := &Executor{
		graph:    g,
		store:    store,
		maxSteps: DefaultMaxSteps,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run tracks the progress of one Run call.
type run struct {
	threadID  string
	state     *domain.State
	saved     *domain.State // state of the last checkpoint, nil before the first
	step      int           // step counter of the last checkpoint
	next      string
	completed int // steps completed by this run
}

// Run resumes (or starts) the thread and executes steps until a router stops
// it or the run aborts.
//
// input is appended as a new user message. It is required when the thread has
// no checkpoint. A terminated thread resumed without input is returned as is.
//
// On abort the returned state is the last checkpointed one (nil when nothing
// was ever checkpointed, in which case input was not kept) and the error is a
// *domain.RunError.
func (e *Executor) Run(ctx context.Context, threadID string, input *domain.Message) (*domain.State, error) {
	if threadID == "" {
		return nil, errors.New("thread id is required")
	}
	if input != nil && input.Role != domain.RoleUser {
		return nil, fmt.Errorf("input must be a user message, got role '%s'", input.Role)
	}

	r, done, err := e.resume(ctx, threadID, input)
	if err != nil || done {
		return stateOf(r), err
	}

	e.logger.Debug("run started", "thread_id", threadID, "step", r.step, "node_id", r.next)

	for {
		// Cancellation is observed between steps only.
		if err := ctx.Err(); err != nil {
			return e.abort(ctx, r, domain.KindCanceled, err)
		}
		if r.completed >= e.maxSteps {
			return e.abort(ctx, r, domain.KindStepLimitExceeded,
				fmt.Errorf("%w: %d steps completed without termination", domain.ErrStepLimitExceeded, r.completed))
		}

		route, err := e.step(ctx, r)
		if err != nil {
			return e.abort(ctx, r, classify(err), err)
		}

		if route.Stopped() {
			e.logger.Debug("run terminated", "thread_id", threadID, "step", r.step, "steps", r.completed)
			e.emitRunEnd(ctx, r, "", nil)
			return r.state, nil
		}
	}
}

// resume loads the checkpoint and prepares the run. done reports that there is
// nothing to execute.
func (e *Executor) resume(ctx context.Context, threadID string, input *domain.Message) (r *run, done bool, err error) {
	cp, err := e.store.Get(ctx, threadID)
	switch {
	case errors.Is(err, domain.ErrCheckpointNotFound):
		if input == nil {
			return nil, false, fmt.Errorf("thread '%s': %w", threadID, domain.ErrNoInput)
		}
		return &run{
			threadID: threadID,
			state:    domain.NewState(threadID, *input),
			next:     e.graph.Entry(),
		}, false, nil

	case err != nil:
		return nil, false, &domain.RunError{
			Kind:     domain.KindCheckpointIO,
			ThreadID: threadID,
			Step:     1,
			Err:      fmt.Errorf("%w: load: %w", domain.ErrCheckpointIO, err),
		}
	}

	r = &run{
		threadID: threadID,
		state:    cp.State,
		saved:    cp.State,
		step:     cp.Step,
		next:     cp.NextNode,
	}
	if r.state == nil {
		r.state = domain.NewState(threadID)
	}
	if r.next == "" {
		r.next = e.graph.Entry()
	}

	if input == nil {
		if cp.Status == domain.StatusTerminated {
			return r, true, nil
		}
		return r, false, nil
	}

	if cp.Status != domain.StatusTerminated && r.next != e.graph.Entry() {
		return r, true, fmt.Errorf("thread '%s' must resume at '%s' before taking input: %w",
			threadID, r.next, domain.ErrPendingSteps)
	}
	r.state = r.state.Append(*input)
	r.next = e.graph.Entry()
	return r, false, nil
}

// step runs the current node, routes, and writes the checkpoint.
func (e *Executor) step(ctx context.Context, r *run) (graph.Route, error) {
	node, ok := e.graph.Node(r.next)
	if !ok {
		return graph.Route{}, &graph.ConfigError{Problems: []string{fmt.Sprintf("node '%s' is not registered", r.next)}}
	}

	number := r.step + 1
	start := e.now()
	e.emitStep(ctx, e.hooks.OnStepStart, &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: start, Type: domain.EventStepStart, ThreadID: r.threadID},
		Step:      number,
		NodeID:    node.ID,
	})
	e.logger.Debug("step started", "thread_id", r.threadID, "step", number, "node_id", node.ID)

	out, err := e.invoke(ctx, node, r.state)
	if err != nil {
		e.emitStepEnd(ctx, r, number, node.ID, "", 0, start, err)
		return graph.Route{}, err
	}

	state := r.state.Append(out...)
	route, err := e.graph.Next(node.ID, state)
	if err != nil {
		e.emitStepEnd(ctx, r, number, node.ID, "", len(out), start, err)
		return graph.Route{}, err
	}

	cp := &domain.Checkpoint{
		ThreadID:  r.threadID,
		State:     state,
		Step:      number,
		NextNode:  route.Next(),
		Status:    domain.StatusActive,
		UpdatedAt: e.now().UTC(),
	}
	if route.Stopped() {
		// A terminated thread picks up at the entry node on its next input.
		cp.NextNode = e.graph.Entry()
		cp.Status = domain.StatusTerminated
	}

	// A completed step is persisted even if the caller gave up meanwhile.
	if err := e.store.Put(context.WithoutCancel(ctx), cp); err != nil {
		err = fmt.Errorf("%w: write step %d: %w", domain.ErrCheckpointIO, number, err)
		e.emitStepEnd(ctx, r, number, node.ID, "", len(out), start, err)
		return graph.Route{}, err
	}
	e.logger.Debug("checkpoint written", "thread_id", r.threadID, "step", number, "next_node", cp.NextNode, "messages", state.Len())

	r.state = state
	r.saved = state
	r.step = number
	r.next = cp.NextNode
	r.completed++

	e.emitStepEnd(ctx, r, number, node.ID, route.Next(), len(out), start, nil)
	return route, nil
}

// invoke runs the node under the step timeout. The node is not interrupted by
// cancellation of ctx; only the timeout bounds it.
func (e *Executor) invoke(ctx context.Context, node graph.Node, state *domain.State) ([]domain.Message, error) {
	stepCtx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if e.stepTimeout > 0 {
		stepCtx, cancel = context.WithTimeout(stepCtx, e.stepTimeout)
	}
	defer cancel()

	out, err := node.Run(stepCtx, state)
	if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		// Whatever the node produced after its deadline is discarded.
		return nil, fmt.Errorf("%w: node '%s' exceeded %s", domain.ErrTimeout, node.ID, e.stepTimeout)
	}
	if err != nil {
		return nil, fmt.Errorf("node '%s': %w", node.ID, err)
	}

	for i, msg := range out {
		if msg.Role == domain.RoleSystem || msg.Role == "" {
			return nil, fmt.Errorf("node '%s' produced message %d with invalid role '%s'", node.ID, i, msg.Role)
		}
	}
	return out, nil
}

// classify maps a step failure to its error kind.
func classify(err error) domain.ErrorKind {
	var cfgErr *graph.ConfigError
	if errors.As(err, &cfgErr) {
		return domain.KindConfiguration
	}
	return domain.KindOf(err)
}

func (e *Executor) abort(ctx context.Context, r *run, kind domain.ErrorKind, err error) (*domain.State, error) {
	runErr := &domain.RunError{
		Kind:      kind,
		ThreadID:  r.threadID,
		Step:      r.step + 1,
		Completed: r.step,
		Err:       err,
	}
	e.logger.Error("run aborted",
		"thread_id", r.threadID,
		"step", runErr.Step,
		"kind", string(kind),
		"err", err,
	)
	e.emitRunEnd(ctx, r, kind, runErr)
	return r.saved, runErr
}

func (e *Executor) emitStep(ctx context.Context, hook func(context.Context, *domain.StepEvent), ev *domain.StepEvent) {
	if hook != nil {
		hook(ctx, ev)
	}
}

func (e *Executor) emitStepEnd(ctx context.Context, r *run, number int, nodeID, next string, appended int, start time.Time, err error) {
	e.emitStep(ctx, e.hooks.OnStepEnd, &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventStepEnd, ThreadID: r.threadID},
		Step:      number,
		NodeID:    nodeID,
		NextNode:  next,
		Appended:  appended,
		Duration:  e.now().Sub(start),
		Err:       err,
	})
	if err == nil {
		e.logger.Debug("step finished", "thread_id", r.threadID, "step", number, "node_id", nodeID, "next_node", next)
	}
}

func (e *Executor) emitRunEnd(ctx context.Context, r *run, kind domain.ErrorKind, err error) {
	if e.hooks.OnRunEnd == nil {
		return
	}
	e.hooks.OnRunEnd(ctx, &domain.RunEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventRunEnd, ThreadID: r.threadID},
		Steps:     r.completed,
		Kind:      kind,
		Err:       err,
	})
}

func stateOf(r *run) *domain.State {
	if r == nil {
		return nil
	}
	return r.saved
}
