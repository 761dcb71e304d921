package cli

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/agentgraph"
	"github.com/aretw0/agentgraph/internal/config"
	"github.com/aretw0/agentgraph/pkg/adapters/anthropic"
	"github.com/aretw0/agentgraph/pkg/adapters/file"
	"github.com/aretw0/agentgraph/pkg/adapters/memory"
	"github.com/aretw0/agentgraph/pkg/adapters/openai"
	"github.com/aretw0/agentgraph/pkg/adapters/process"
	"github.com/aretw0/agentgraph/pkg/adapters/redis"
	"github.com/aretw0/agentgraph/pkg/adapters/sqlite"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/persistence/middleware"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/aretw0/agentgraph/pkg/registry"
	"github.com/aretw0/agentgraph/pkg/tools/docsearch"
	"github.com/aretw0/agentgraph/pkg/tools/layout"
)

// Runtime is a fully wired engine plus the resources it holds open.
type Runtime struct {
	Engine *agentgraph.Engine
	Config *config.Config
	Logger *slog.Logger

	closers []func() error
}

// Close releases store connections.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

type buildOptions struct {
	model ports.Model
	hooks domain.LifecycleHooks
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

// WithModel replaces the provider model named in the config.
func WithModel(m ports.Model) BuildOption {
	return func(o *buildOptions) {
		o.model = m
	}
}

// WithHooks adds lifecycle hooks (metrics, transcript) to the engine.
func WithHooks(h domain.LifecycleHooks) BuildOption {
	return func(o *buildOptions) {
		o.hooks = o.hooks.Merge(h)
	}
}

// Build creates the engine described by cfg.
func Build(cfg *config.Config, logger *slog.Logger, opts ...BuildOption) (*Runtime, error) {
	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}

	rt := &Runtime{Config: cfg, Logger: logger}

	model := o.model
	if model == nil {
		var err error
		if model, err = NewModel(cfg, logger); err != nil {
			return nil, err
		}
	}

	tools, err := NewRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, locker, closer, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}

	store, err = wrapStore(store, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	engineOpts := []agentgraph.Option{
		agentgraph.WithStore(store),
		agentgraph.WithLogger(logger),
		agentgraph.WithLifecycleHooks(o.hooks),
		agentgraph.WithMaxSteps(cfg.MaxSteps),
		agentgraph.WithStepTimeout(time.Duration(cfg.StepTimeout)),
		agentgraph.WithSystemPrompt(cfg.SystemPrompt),
		agentgraph.WithToolConcurrency(cfg.ToolConcurrency),
	}
	if locker != nil {
		engineOpts = append(engineOpts, agentgraph.WithLocker(locker))
	}

	engine, err := agentgraph.NewAgent(model, tools, engineOpts...)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	rt.Engine = engine

	logger.Debug("engine ready",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"store", cfg.Store.Kind,
		"tools", strings.Join(tools.Names(), ","),
	)
	return rt, nil
}

// NewModel creates the provider client. A missing API key is not an error
// here; the provider rejects the first request instead, so commands that
// never call the model (thread, graph) keep working.
func NewModel(cfg *config.Config, logger *slog.Logger) (ports.Model, error) {
	key := cfg.APIKey()
	if key == "" {
		logger.Debug("no API key in environment", "provider", cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithLogger(logger)}
		if key != "" {
			opts = append(opts, openai.WithAPIKey(key))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, openai.WithMaxTokens(int64(cfg.MaxTokens)))
		}
		return openai.New(cfg.Model, opts...), nil
	case config.ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithLogger(logger)}
		if key != "" {
			opts = append(opts, anthropic.WithAPIKey(key))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, anthropic.WithMaxTokens(int64(cfg.MaxTokens)))
		}
		return anthropic.New(cfg.Model, opts...), nil
	}
	return nil, fmt.Errorf("unknown provider '%s'", cfg.Provider)
}

// NewStore opens the configured checkpoint backend. The redis backend also
// returns a distributed locker sharing its client.
func NewStore(cfg *config.Config) (ports.CheckpointStore, ports.DistributedLocker, func() error, error) {
	sc := cfg.Store
	switch sc.Kind {
	case "", config.StoreMemory:
		return memory.NewStore(), nil, nil, nil
	case config.StoreFile:
		return file.New(sc.Path), nil, nil, nil
	case config.StoreSQLite:
		s, err := sqlite.New(sc.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, s.Close, nil
	case config.StoreRedis:
		var opts []redis.Option
		if sc.Prefix != "" {
			opts = append(opts, redis.WithPrefix(sc.Prefix))
		}
		if sc.TTL > 0 {
			opts = append(opts, redis.WithTTL(time.Duration(sc.TTL)))
		}
		s := redis.New(sc.Addr, sc.Password, sc.DB, opts...)
		return s, redis.NewLocker(s.Client(), sc.Prefix), s.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store kind '%s'", sc.Kind)
}

// wrapStore applies PII masking and then encryption, so masked text is what
// gets encrypted.
func wrapStore(store ports.CheckpointStore, cfg *config.Config) (ports.CheckpointStore, error) {
	var mws []middleware.Middleware

	if len(cfg.PIIPatterns) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.PIIPatterns)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}

	if key := cfg.EncryptionKey(); key != "" {
		raw, err := ParseKey(key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.EncryptionKeyEnv, err)
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: raw})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	} else if cfg.EncryptionKeyEnv != "" {
		return nil, fmt.Errorf("encryption key variable %s is not set", cfg.EncryptionKeyEnv)
	}

	return middleware.Chain(store, mws...), nil
}

// ParseKey decodes a 32-byte key given as hex or base64.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	return nil, errors.New("encryption key must be 32 bytes, hex or base64 encoded")
}

// NewRegistry registers the reference tools enabled in cfg and the
// configured external commands.
func NewRegistry(cfg *config.Config, logger *slog.Logger) (*registry.Registry, error) {
	reg := registry.MustNew()

	if cfg.DocsDir != "" {
		idx := docsearch.NewIndex()
		if err := idx.LoadDir(cfg.DocsDir); err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", cfg.DocsDir, err)
		}
		logger.Debug("documents indexed", "dir", cfg.DocsDir, "passages", idx.Len())
		if err := reg.Register(docsearch.Tool(idx)); err != nil {
			return nil, err
		}
	}

	if cfg.Layout {
		if err := reg.Register(layout.Tool()); err != nil {
			return nil, err
		}
	}

	if len(cfg.Tools) > 0 {
		runner := process.NewRunner(process.WithLogger(logger))
		tools, err := runner.Tools(cfg.ProcessTools()...)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(tools...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
