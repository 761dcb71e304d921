package observability

import (
	"context"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by the engine hooks.
type Metrics struct {
	Steps        *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec
	Runs         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgraph_steps_total",
				Help: "Total number of executed steps by node and outcome",
			},
			[]string{"node_id", "outcome"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentgraph_step_duration_seconds",
				Help:    "Duration of executed steps",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"node_id"},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgraph_tool_calls_total",
				Help: "Total number of tool calls by tool and outcome",
			},
			[]string{"tool_name", "outcome"},
		),
		ToolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentgraph_tool_duration_seconds",
				Help:    "Duration of tool executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgraph_runs_total",
				Help: "Total number of finished runs by outcome",
			},
			[]string{"outcome"},
		),
	}

	for _, c := range []prometheus.Collector{m.Steps, m.StepDuration, m.ToolCalls, m.ToolDuration, m.Runs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnd: func(_ context.Context, e *domain.StepEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = string(domain.KindOf(e.Err))
			}
			m.Steps.WithLabelValues(e.NodeID, outcome).Inc()
			m.StepDuration.WithLabelValues(e.NodeID).Observe(e.Duration.Seconds())
		},
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) {
			outcome := "ok"
			if e.IsError {
				outcome = string(e.Kind)
			}
			m.ToolCalls.WithLabelValues(e.ToolName, outcome).Inc()
			m.ToolDuration.WithLabelValues(e.ToolName).Observe(e.Duration.Seconds())
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			outcome := "terminated"
			if e.Kind != "" {
				outcome = string(e.Kind)
			}
			m.Runs.WithLabelValues(outcome).Inc()
		},
	}
}
