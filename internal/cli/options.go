// Package cli wires configuration, adapters and presentation together for
// the agentgraph command.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/agentgraph/internal/config"
	"github.com/aretw0/agentgraph/internal/logging"
)

// Options holds the global flags. Non-zero override fields replace the
// matching config file values.
type Options struct {
	ConfigPath string
	LogLevel   string
	LogJSON    bool

	Provider string
	Model    string
	Store    string
	MaxSteps int
}

// LoadConfig reads the config file and applies the flag overrides.
func LoadConfig(opts Options) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if opts.Provider != "" {
		cfg.Provider = opts.Provider
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Store != "" {
		cfg.Store.Kind = opts.Store
	}
	if opts.MaxSteps > 0 {
		cfg.MaxSteps = opts.MaxSteps
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the stderr logger selected by the flags.
func NewLogger(opts Options) (*slog.Logger, error) {
	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewWith(logging.Options{
		Level:  level,
		JSON:   opts.LogJSON,
		Output: os.Stderr,
	}), nil
}
