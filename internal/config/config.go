// Package config loads the agentgraph.yaml file used by the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/agentgraph/pkg/adapters/process"
	"gopkg.in/yaml.v3"
)

// DefaultPath is looked up in the working directory when no --config is given.
const DefaultPath = "agentgraph.yaml"

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Duration accepts "30s" style strings in both YAML and JSON.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	return d.parse(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// StoreConfig selects and configures the checkpoint backend.
type StoreConfig struct {
	Kind     string   `yaml:"kind" json:"kind"`
	Path     string   `yaml:"path" json:"path"`
	Addr     string   `yaml:"addr" json:"addr"`
	Password string   `yaml:"password" json:"password"`
	DB       int      `yaml:"db" json:"db"`
	Prefix   string   `yaml:"prefix" json:"prefix"`
	TTL      Duration `yaml:"ttl" json:"ttl"`
}

// ToolConfig declares an external command tool.
type ToolConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Env         map[string]string `yaml:"env" json:"env"`
	Parameters  map[string]any    `yaml:"parameters" json:"parameters"`
	Timeout     Duration          `yaml:"timeout" json:"timeout"`
}

// Process converts the declaration for the process runner.
func (t ToolConfig) Process() process.ProcessConfig {
	return process.ProcessConfig{
		Name:        t.Name,
		Description: t.Description,
		Command:     t.Command,
		Args:        t.Args,
		Environment: t.Env,
		Parameters:  t.Parameters,
		Timeout:     time.Duration(t.Timeout),
	}
}

// Config is the full file configuration. Credentials are never stored here,
// only the names of the environment variables holding them. An empty Model
// selects the provider adapter's default.
type Config struct {
	Provider     string `yaml:"provider" json:"provider"`
	Model        string `yaml:"model" json:"model"`
	APIKeyEnv    string `yaml:"api_key_env" json:"api_key_env"`
	BaseURL      string `yaml:"base_url" json:"base_url"`
	MaxTokens    int    `yaml:"max_tokens" json:"max_tokens"`
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`

	MaxSteps        int      `yaml:"max_steps" json:"max_steps"`
	StepTimeout     Duration `yaml:"step_timeout" json:"step_timeout"`
	ToolConcurrency int      `yaml:"tool_concurrency" json:"tool_concurrency"`

	Store            StoreConfig `yaml:"store" json:"store"`
	EncryptionKeyEnv string      `yaml:"encryption_key_env" json:"encryption_key_env"`
	PIIPatterns      []string    `yaml:"pii_patterns" json:"pii_patterns"`

	DocsDir string       `yaml:"docs_dir" json:"docs_dir"`
	Layout  bool         `yaml:"layout" json:"layout"`
	Tools   []ToolConfig `yaml:"tools" json:"tools"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Provider:    ProviderOpenAI,
		MaxSteps:    25,
		StepTimeout: Duration(2 * time.Minute),
		Store:       StoreConfig{Kind: StoreMemory},
	}
}

// Load reads a configuration file (YAML or JSON) on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("unknown provider '%s'", c.Provider))
	}
	if c.MaxSteps < 0 {
		errs = append(errs, errors.New("max_steps must not be negative"))
	}
	if c.StepTimeout < 0 {
		errs = append(errs, errors.New("step_timeout must not be negative"))
	}
	if c.ToolConcurrency < 0 {
		errs = append(errs, errors.New("tool_concurrency must not be negative"))
	}

	switch c.Store.Kind {
	case "", StoreMemory:
	case StoreFile, StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store '%s' requires a path", c.Store.Kind))
		}
	case StoreRedis:
		if c.Store.Addr == "" {
			errs = append(errs, errors.New("store 'redis' requires an addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store kind '%s'", c.Store.Kind))
	}

	seen := map[string]bool{}
	for _, t := range c.Tools {
		if err := t.Process().Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("tool '%s' declared twice", t.Name))
		}
		seen[t.Name] = true
	}
	return errors.Join(errs...)
}

// APIKey resolves the provider credential from the environment.
// An empty APIKeyEnv falls back to the provider's conventional variable.
func (c *Config) APIKey() string {
	name := c.APIKeyEnv
	if name == "" {
		switch c.Provider {
		case ProviderAnthropic:
			name = "ANTHROPIC_API_KEY"
		default:
			name = "OPENAI_API_KEY"
		}
	}
	return os.Getenv(name)
}

// EncryptionKey resolves the checkpoint encryption key, if configured.
func (c *Config) EncryptionKey() string {
	if c.EncryptionKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.EncryptionKeyEnv)
}

// ProcessTools returns the external tool declarations for the process runner.
func (c *Config) ProcessTools() []process.ProcessConfig {
	out := make([]process.ProcessConfig, 0, len(c.Tools))
	for _, t := range c.Tools {
		out = append(out, t.Process())
	}
	return out
}
