package agentgraph

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/internal/runtime"
	"github.com/aretw0/agentgraph/pkg/adapters/memory"
	"github.com/aretw0/agentgraph/pkg/agent"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/graph"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/aretw0/agentgraph/pkg/registry"
	"github.com/aretw0/agentgraph/pkg/session"
)

// Engine is the high-level entry point for the agentgraph library.
// It wraps the internal executor and serializes runs per thread.
type Engine struct {
	graph    *graph.Graph
	sessions *session.Manager
	executor *runtime.Executor

	store       ports.CheckpointStore
	locker      ports.DistributedLocker
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	maxSteps    int
	stepTimeout time.Duration

	// Used by NewAgent only.
	systemPrompt    string
	toolConcurrency int
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the checkpoint store. Defaults to an in-memory store.
func WithStore(store ports.CheckpointStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed locking of threads across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxSteps caps the number of steps a single run may complete.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithStepTimeout bounds every node invocation.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.stepTimeout = d
	}
}

// WithSystemPrompt sets the model instructions used by NewAgent.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		e.systemPrompt = prompt
	}
}

// WithToolConcurrency caps concurrent tool calls per step in NewAgent.
func WithToolConcurrency(n int) Option {
	return func(e *Engine) {
		e.toolConcurrency = n
	}
}

func newEngine(opts []Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	return e
}

// New creates an engine that runs the compiled graph g.
func New(g *graph.Graph, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, errors.New("graph is required")
	}
	e := newEngine(opts)
	e.init(g)
	return e, nil
}

// NewAgent creates an engine running the standard agent/tool loop.
// tools may be nil.
func NewAgent(model ports.Model, tools *registry.Registry, opts ...Option) (*Engine, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	e := newEngine(opts)

	g, err := agent.NewGraph(model, tools,
		agent.WithSystemPrompt(e.systemPrompt),
		agent.WithConcurrency(e.toolConcurrency),
		agent.WithHooks(e.hooks),
		agent.WithLogger(e.logger),
	)
	if err != nil {
		return nil, err
	}
	e.init(g)
	return e, nil
}

func (e *Engine) init(g *graph.Graph) {
	e.graph = g
	e.sessions = session.NewManager(e.store,
		session.WithLocker(e.locker),
		session.WithLogger(e.logger),
	)
	e.executor = runtime.NewExecutor(g, e.sessions,
		runtime.WithMaxSteps(e.maxSteps),
		runtime.WithStepTimeout(e.stepTimeout),
		runtime.WithHooks(e.hooks),
		runtime.WithLogger(e.logger),
	)
}

// Run resumes (or starts) the thread, optionally appending input as a new
// user message, and executes it until the graph stops or the run aborts.
// Runs of the same thread are serialized.
func (e *Engine) Run(ctx context.Context, threadID string, input *domain.Message) (*domain.State, error) {
	var state *domain.State
	err := e.sessions.WithLock(ctx, threadID, func(ctx context.Context) error {
		var err error
		state, err = e.executor.Run(ctx, threadID, input)
		return err
	})
	return state, err
}

// Chat is Run with a plain-text user message.
func (e *Engine) Chat(ctx context.Context, threadID, text string) (*domain.State, error) {
	msg := domain.UserMessage(text)
	return e.Run(ctx, threadID, &msg)
}

// Thread returns the latest checkpoint of the thread.
func (e *Engine) Thread(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	return e.sessions.Get(ctx, threadID)
}

// Delete removes the thread and its checkpoint.
func (e *Engine) Delete(ctx context.Context, threadID string) error {
	return e.sessions.Delete(ctx, threadID)
}

// Threads lists stored thread ids.
func (e *Engine) Threads(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Graph returns the compiled graph for introspection.
func (e *Engine) Graph() *graph.Graph {
	return e.graph
}

// Store returns the underlying checkpoint store.
func (e *Engine) Store() ports.CheckpointStore {
	return e.store
}
