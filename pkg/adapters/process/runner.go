package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/registry"
)

// ArgPrefix prefixes the environment variables carrying tool arguments.
const ArgPrefix = "AGENTGRAPH_ARG_"

// DefaultGracePeriod is how long a canceled process gets to exit after the
// interrupt signal before it is killed.
const DefaultGracePeriod = 5 * time.Second

var envKey = regexp.MustCompile(`[^A-Z0-9_]`)

// Runner turns ProcessConfig declarations into registry tools.
// Only declared commands can run: the model picks a tool name, never a command line.
type Runner struct {
	baseDir string
	grace   time.Duration
	logger  *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithGracePeriod sets the delay between interrupt and kill on cancellation.
func WithGracePeriod(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.grace = d
	}
}

// WithLogger sets the logger used for process diagnostics.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{grace: DefaultGracePeriod, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tools builds one registry tool per declaration.
func (r *Runner) Tools(configs ...ProcessConfig) ([]registry.Tool, error) {
	tools := make([]registry.Tool, 0, len(configs))
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		cfg := cfg
		tools = append(tools, registry.Tool{
			Name:        cfg.Name,
			Description: cfg.Description,
			Parameters:  cfg.Parameters,
			Execute: func(ctx context.Context, args json.RawMessage) (string, error) {
				return r.run(ctx, cfg, args)
			},
		})
	}
	return tools, nil
}

// run executes the command. Arguments never reach the command line: they are
// passed as environment variables and as the JSON document on stdin.
func (r *Runner) run(ctx context.Context, cfg ProcessConfig, raw json.RawMessage) (string, error) {
	env, err := argEnv(raw)
	if err != nil {
		return "", err
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = r.baseDir
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = r.grace

	cmd.Env = cmd.Environ()
	for k, v := range cfg.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env, env...)

	if len(raw) > 0 {
		cmd.Stdin = bytes.NewReader(raw)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	r.logger.Debug("process tool finished", "tool", cfg.Name, "duration", time.Since(start), "error", err)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(err, ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("process '%s' failed: %w", cfg.Name, err)
		}
		return "", fmt.Errorf("process '%s' failed: %w (stderr: %s)", cfg.Name, err, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// argEnv flattens the top-level argument keys into KEY=value pairs.
// Primitives are formatted as-is; objects and arrays are JSON encoded.
func argEnv(raw json.RawMessage) ([]string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedArguments, err)
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		var val string
		switch v := args[k].(type) {
		case nil:
		case string:
			val = v
		case float64, bool:
			val = fmt.Sprint(v)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrMalformedArguments, err)
			}
			val = string(b)
		}
		env = append(env, ArgPrefix+envKey.ReplaceAllString(strings.ToUpper(k), "_")+"="+val)
	}
	return env, nil
}
