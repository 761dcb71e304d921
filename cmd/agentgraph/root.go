package main

import (
	"fmt"
	"os"

	"github.com/aretw0/agentgraph/internal/cli"
	"github.com/aretw0/agentgraph/internal/config"
	"github.com/spf13/cobra"
)

var globalOpts cli.Options

var rootCmd = &cobra.Command{
	Use:   "agentgraph",
	Short: "agentgraph runs tool-using LLM agents as checkpointed graphs",
	Long: `agentgraph executes an agent/tool loop as a graph of steps.
Every completed step is checkpointed, so a thread can be inspected,
resumed after a crash and served over HTTP or MCP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the engine for a command.
func setup(opts ...cli.BuildOption) (*cli.Runtime, error) {
	logger, err := cli.NewLogger(globalOpts)
	if err != nil {
		return nil, err
	}
	cfg, err := cli.LoadConfig(globalOpts)
	if err != nil {
		return nil, err
	}
	return cli.Build(cfg, logger, opts...)
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&globalOpts.ConfigPath, "config", "c", config.DefaultPath, "Path to the configuration file (YAML or JSON)")
	flags.StringVar(&globalOpts.LogLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flags.BoolVar(&globalOpts.LogJSON, "log-json", false, "Write logs as JSON")
	flags.StringVar(&globalOpts.Provider, "provider", "", "Override the model provider (openai, anthropic)")
	flags.StringVar(&globalOpts.Model, "model", "", "Override the model name")
	flags.StringVar(&globalOpts.Store, "store", "", "Override the checkpoint store kind (memory, file, redis, sqlite)")
	flags.IntVar(&globalOpts.MaxSteps, "max-steps", 0, "Override the step limit of one run")
}
