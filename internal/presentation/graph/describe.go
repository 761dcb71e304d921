package graph

import core "github.com/aretw0/agentgraph/pkg/graph"

// Description is the JSON view of a compiled graph.
type Description struct {
	Entry string            `json:"entry"`
	Nodes []string          `json:"nodes"`
	Edges []EdgeDescription `json:"edges"`
}

// EdgeDescription is one outgoing edge. Conditional edges list every
// declared target; the router may also stop the run.
type EdgeDescription struct {
	From        string   `json:"from"`
	To          []string `json:"to"`
	Conditional bool     `json:"conditional"`
}

// Describe builds the JSON view of g.
func Describe(g *core.Graph) Description {
	d := Description{Entry: g.Entry(), Nodes: g.Nodes()}
	for _, e := range g.Edges() {
		ed := EdgeDescription{From: e.From, Conditional: e.Conditional()}
		if e.Conditional() {
			ed.To = append(e.Targets, core.End)
		} else {
			ed.To = []string{e.To}
		}
		d.Edges = append(d.Edges, ed)
	}
	return d
}
