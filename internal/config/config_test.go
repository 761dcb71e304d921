package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := write(t, "agentgraph.yaml", `
provider: anthropic
model: claude-sonnet-4-5
api_key_env: MY_KEY
system_prompt: be brief
max_steps: 10
step_timeout: 45s
tool_concurrency: 4
store:
  kind: redis
  addr: localhost:6379
  prefix: "ag:"
  ttl: 24h
encryption_key_env: AG_KEY
docs_dir: ./docs
layout: true
tools:
  - name: uptime
    description: host uptime
    command: uptime
    timeout: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Model)
	assert.Equal(t, 10, cfg.MaxSteps)
	assert.Equal(t, 45*time.Second, time.Duration(cfg.StepTimeout))
	assert.Equal(t, 4, cfg.ToolConcurrency)
	assert.Equal(t, StoreRedis, cfg.Store.Kind)
	assert.Equal(t, 24*time.Hour, time.Duration(cfg.Store.TTL))
	assert.Equal(t, "./docs", cfg.DocsDir)
	assert.True(t, cfg.Layout)

	tools := cfg.ProcessTools()
	require.Len(t, tools, 1)
	assert.Equal(t, "uptime", tools[0].Name)
	assert.Equal(t, 2*time.Second, tools[0].Timeout)

	t.Setenv("MY_KEY", "secret")
	assert.Equal(t, "secret", cfg.APIKey())
	t.Setenv("AG_KEY", "k")
	assert.Equal(t, "k", cfg.EncryptionKey())
}

func TestLoad_JSONByExtension(t *testing.T) {
	path := write(t, "agentgraph.json", `{"provider":"openai","model":"gpt-4o","step_timeout":"5s","store":{"kind":"sqlite","path":"ag.db"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.StepTimeout))
	assert.Equal(t, StoreSQLite, cfg.Store.Kind)
	// Unset fields keep their defaults.
	assert.Equal(t, 25, cfg.MaxSteps)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("Syntax", func(t *testing.T) {
		_, err := Load(write(t, "bad.yaml", "provider: [unterminated"))
		assert.ErrorContains(t, err, "failed to parse")
	})

	t.Run("Bad Duration", func(t *testing.T) {
		_, err := Load(write(t, "bad.yaml", "step_timeout: soon"))
		assert.Error(t, err)
	})

	t.Run("Reports Every Problem", func(t *testing.T) {
		_, err := Load(write(t, "bad.yaml", `
provider: llama
max_steps: -1
store:
  kind: file
tools:
  - name: a
    command: ls
  - name: a
    command: ls
  - name: b
`))
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "unknown provider 'llama'")
		assert.Contains(t, msg, "max_steps must not be negative")
		assert.Contains(t, msg, "store 'file' requires a path")
		assert.Contains(t, msg, "tool 'a' declared twice")
		assert.Contains(t, msg, "command is required")
	})
}

func TestAPIKey_ProviderFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "ant")
	t.Setenv("OPENAI_API_KEY", "oai")

	cfg := Default()
	assert.Equal(t, "oai", cfg.APIKey())
	cfg.Provider = ProviderAnthropic
	assert.Equal(t, "ant", cfg.APIKey())
}
