package agent

import (
	"log/slog"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
)

type config struct {
	systemPrompt string
	concurrency  int
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
}

func newConfig(opts []Option) *config {
	c := &config{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option configures the nodes built by this package.
type Option func(*config)

// WithSystemPrompt sets instructions passed to the model on every call.
// The prompt is never stored in the conversation.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) {
		c.systemPrompt = prompt
	}
}

// WithConcurrency caps how many tool calls of one step run at once.
// Zero or a negative value means no limit.
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
	}
}

// WithHooks registers tool lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = hooks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
