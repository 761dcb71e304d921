package graph_test

import (
	"context"
	"testing"

	"github.com/aretw0/agentgraph/internal/presentation/graph"
	"github.com/aretw0/agentgraph/pkg/domain"
	core "github.com/aretw0/agentgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, *domain.State) ([]domain.Message, error) { return nil, nil }

func compile(t *testing.T) *core.Graph {
	t.Helper()
	g, err := core.New().
		AddNode("agent", noop).
		AddNode("web-search", noop).
		AddConditionalEdge("agent", func(*domain.State) core.Route { return core.Stop() }, "web-search").
		AddEdge("web-search", "agent").
		SetEntry("agent").
		Compile()
	require.NoError(t, err)
	return g
}

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(compile(t), nil)

	assert.Contains(t, out, "graph TD\n")
	assert.Contains(t, out, `agent(("agent"))`, "entry is a circle")
	assert.Contains(t, out, `web_search["web-search"]`, "ids are sanitized, labels are not")
	assert.Contains(t, out, `__end__((("end")))`)
	assert.Contains(t, out, "agent -.-> web_search")
	assert.Contains(t, out, "agent -. stop .-> __end__")
	assert.Contains(t, out, "web_search --> agent")
	assert.NotContains(t, out, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	g := compile(t)

	out := graph.GenerateMermaid(g, &graph.GraphOverlay{CurrentNode: "web-search"})
	assert.Contains(t, out, "class web_search current;")

	out = graph.GenerateMermaid(g, &graph.GraphOverlay{CurrentNode: "agent", Terminated: true})
	assert.Contains(t, out, "class __end__ current;")
	assert.NotContains(t, out, "class agent current;")
}

func TestDescribe(t *testing.T) {
	d := graph.Describe(compile(t))

	assert.Equal(t, "agent", d.Entry)
	assert.Equal(t, []string{"agent", "web-search"}, d.Nodes)
	require.Len(t, d.Edges, 2)
	assert.Equal(t, graph.EdgeDescription{From: "agent", To: []string{"web-search", core.End}, Conditional: true}, d.Edges[0])
	assert.Equal(t, graph.EdgeDescription{From: "web-search", To: []string{"agent"}}, d.Edges[1])
}
