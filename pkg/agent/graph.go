package agent

import (
	"github.com/aretw0/agentgraph/pkg/graph"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/aretw0/agentgraph/pkg/registry"
)

// Node ids used by NewGraph.
const (
	AgentNodeID = "agent"
	ToolsNodeID = "tools"
)

// NewGraph compiles the standard loop: agent -> (tools -> agent)* -> stop.
// A nil registry offers no tools.
func NewGraph(model ports.Model, tools *registry.Registry, opts ...Option) (*graph.Graph, error) {
	if tools == nil {
		tools = registry.MustNew()
	}
	return graph.New().
		AddNode(AgentNodeID, NewAgentNode(model, tools, opts...)).
		AddNode(ToolsNodeID, NewToolNode(tools, opts...)).
		AddConditionalEdge(AgentNodeID, ToolsCondition(ToolsNodeID), ToolsNodeID).
		AddEdge(ToolsNodeID, AgentNodeID).
		SetEntry(AgentNodeID).
		Compile()
}
