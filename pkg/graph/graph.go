package graph

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// NodeFunc reads the full state and returns the messages to append.
// It must not modify the state it receives.
type NodeFunc func(ctx context.Context, state *domain.State) ([]domain.Message, error)

// Node is a named unit of work in the graph.
type Node struct {
	ID  string
	Run NodeFunc
}

// Edge describes the outgoing transition of a node.
type Edge struct {
	From string
	// To is set for static edges.
	To string
	// Router and Targets are set for conditional edges.
	Router  Router
	Targets []string
}

// Conditional reports whether the edge is decided by a Router.
func (e Edge) Conditional() bool {
	return e.Router != nil
}

// ConfigError lists every problem found while compiling a graph.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid graph: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid graph: found %d problems:\n- %s", len(e.Problems), strings.Join(e.Problems, "\n- "))
}

// Unwrap lets errors.Is match domain.ErrInvalidGraph.
func (e *ConfigError) Unwrap() error {
	return domain.ErrInvalidGraph
}

// Builder accumulates a graph definition. Methods chain; problems are
// reported together by Compile.
type Builder struct {
	nodes    map[string]Node
	order    []string
	edges    []Edge
	entries  []string
	problems []string
}

// New starts an empty graph definition.
func New() *Builder {
	return &Builder{nodes: make(map[string]Node)}
}

func (b *Builder) problem(format string, args ...any) {
	b.problems = append(b.problems, fmt.Sprintf(format, args...))
}

// AddNode registers a node under id.
func (b *Builder) AddNode(id string, fn NodeFunc) *Builder {
	switch {
	case id == "":
		b.problem("node id must not be empty")
		return b
	case id == End:
		b.problem("node id '%s' is reserved", End)
		return b
	case fn == nil:
		b.problem("node '%s' has no function", id)
		return b
	}
	if _, exists := b.nodes[id]; exists {
		b.problem("node '%s' is registered more than once", id)
		return b
	}
	b.nodes[id] = Node{ID: id, Run: fn}
	b.order = append(b.order, id)
	return b
}

// AddEdge adds an unconditional transition.
func (b *Builder) AddEdge(from, to string) *Builder {
	b.edges = append(b.edges, Edge{From: from, To: to})
	return b
}

// AddConditionalEdge attaches a Router to from. targets declares every node the
// router may continue to; Stop is always allowed.
func (b *Builder) AddConditionalEdge(from string, router Router, targets ...string) *Builder {
	if router == nil {
		b.problem("conditional edge from '%s' has no router", from)
		return b
	}
	b.edges = append(b.edges, Edge{From: from, Router: router, Targets: append([]string(nil), targets...)})
	return b
}

// SetEntry marks the node where runs start.
func (b *Builder) SetEntry(id string) *Builder {
	b.entries = append(b.entries, id)
	return b
}

// Compile validates the definition and returns an immutable Graph.
func (b *Builder) Compile() (*Graph, error) {
	problems := append([]string(nil), b.problems...)
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch len(b.entries) {
	case 0:
		add("no entry node set")
	case 1:
		if _, ok := b.nodes[b.entries[0]]; !ok {
			add("entry node '%s' is not registered", b.entries[0])
		}
	default:
		add("entry node set %d times (%s)", len(b.entries), strings.Join(b.entries, ", "))
	}

	outgoing := make(map[string]Edge, len(b.edges))
	for _, e := range b.edges {
		if _, ok := b.nodes[e.From]; !ok {
			add("edge source '%s' is not registered", e.From)
			continue
		}
		if _, dup := outgoing[e.From]; dup {
			add("node '%s' has more than one outgoing edge", e.From)
			continue
		}
		outgoing[e.From] = e

		if !e.Conditional() {
			switch _, ok := b.nodes[e.To]; {
			case e.To == End:
				add("static edge '%s' -> '%s': runs end only through a router", e.From, End)
			case !ok:
				add("edge '%s' -> '%s' targets an unregistered node", e.From, e.To)
			}
			continue
		}
		for _, target := range e.Targets {
			if _, ok := b.nodes[target]; !ok && target != End {
				add("conditional edge from '%s' declares unregistered target '%s'", e.From, target)
			}
		}
	}

	for _, id := range b.order {
		if _, ok := outgoing[id]; !ok {
			add("node '%s' has no outgoing edge", id)
		}
	}

	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}

	g := &Graph{
		nodes: make(map[string]Node, len(b.nodes)),
		order: append([]string(nil), b.order...),
		edges: outgoing,
		entry: b.entries[0],
	}
	for id, n := range b.nodes {
		g.nodes[id] = n
	}
	return g, nil
}

// Graph is a compiled, immutable graph definition.
type Graph struct {
	nodes map[string]Node
	order []string
	edges map[string]Edge
	entry string
}

// Entry returns the id of the entry node.
func (g *Graph) Entry() string {
	return g.entry
}

// Node returns the node registered under id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns node ids in registration order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Edges returns the outgoing edge of every node, in node registration order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, id := range g.order {
		e := g.edges[id]
		e.Targets = append([]string(nil), e.Targets...)
		out = append(out, e)
	}
	return out
}

// Next resolves the route out of from for the given state: the static edge
// if one exists, otherwise the node's Router.
func (g *Graph) Next(from string, state *domain.State) (Route, error) {
	e, ok := g.edges[from]
	if !ok {
		return Route{}, &ConfigError{Problems: []string{fmt.Sprintf("node '%s' has no outgoing edge", from)}}
	}
	if !e.Conditional() {
		return Continue(e.To), nil
	}

	route := e.Router(state)
	if route.Stopped() {
		return route, nil
	}
	if _, ok := g.nodes[route.Next()]; !ok {
		return Route{}, &ConfigError{Problems: []string{
			fmt.Sprintf("router of '%s' returned unknown node '%s'", from, route.Next()),
		}}
	}
	if len(e.Targets) > 0 && !slices.Contains(e.Targets, route.Next()) {
		return Route{}, &ConfigError{Problems: []string{
			fmt.Sprintf("router of '%s' returned undeclared target '%s'", from, route.Next()),
		}}
	}
	return route, nil
}
