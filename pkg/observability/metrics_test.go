package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnStepEnd(ctx, &domain.StepEvent{NodeID: "agent", Duration: 20 * time.Millisecond})
	hooks.OnStepEnd(ctx, &domain.StepEvent{NodeID: "agent", Err: domain.ErrModelInvocation})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "weather"})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "weather", IsError: true, Kind: domain.KindMalformedArguments})
	hooks.OnRunEnd(ctx, &domain.RunEvent{Steps: 3})
	hooks.OnRunEnd(ctx, &domain.RunEvent{Kind: domain.KindTimeout, Err: domain.ErrTimeout})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("agent", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("agent", "ModelInvocationError")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("weather", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("weather", "MalformedArguments")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("terminated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("TimeoutError")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StepDuration))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestLoggingHooks_MergeWithMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	m, err := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	hooks := observability.LoggingHooks(logger).Merge(m.Hooks())
	ctx := context.Background()

	hooks.OnStepStart(ctx, &domain.StepEvent{EventBase: domain.EventBase{ThreadID: "t1"}, Step: 1, NodeID: "agent"})
	hooks.OnRunEnd(ctx, &domain.RunEvent{EventBase: domain.EventBase{ThreadID: "t1"}, Kind: domain.KindCheckpointIO, Err: errors.New("disk full")})

	assert.Contains(t, buf.String(), "step_start")
	assert.Contains(t, buf.String(), "run_aborted")
	assert.Contains(t, buf.String(), "disk full")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("CheckpointIOError")))
}
