package agent_test

import (
	"testing"

	"github.com/aretw0/agentgraph/pkg/agent"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
)

func TestToolsCondition(t *testing.T) {
	route := agent.ToolsCondition("tools")

	tests := []struct {
		name  string
		state *domain.State
		want  graph.Route
	}{
		{"Empty", domain.NewState("t"), graph.Stop()},
		{"PlainAnswer", domain.NewState("t", domain.UserMessage("q"), domain.AssistantMessage("a")), graph.Stop()},
		{"PendingCalls", domain.NewState("t", domain.UserMessage("q"),
			domain.AssistantMessage("", domain.ToolCall{ID: "1", Name: "x"})), graph.Continue("tools")},
		{"AfterToolResult", domain.NewState("t", domain.UserMessage("q"),
			domain.AssistantMessage("", domain.ToolCall{ID: "1", Name: "x"}),
			domain.ToolResultMessage("1", "done")), graph.Stop()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, route(tt.state))
			assert.Equal(t, route(tt.state), route(tt.state), "router must be deterministic")
		})
	}
}
