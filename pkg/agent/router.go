package agent

import (
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/graph"
)

// ToolsCondition continues to toolNodeID while the last message is an
// assistant message with pending tool calls, and stops otherwise.
func ToolsCondition(toolNodeID string) graph.Router {
	return func(state *domain.State) graph.Route {
		if last, ok := state.Last(); ok && last.HasToolCalls() {
			return graph.Continue(toolNodeID)
		}
		return graph.Stop()
	}
}
