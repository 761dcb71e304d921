package graph

import "github.com/aretw0/agentgraph/pkg/domain"

// End is the reserved terminal marker. It is never a valid node id.
const End = "__end__"

// Route is the decision returned by a Router: continue at a node, or stop.
// The zero value is invalid and aborts the run as a configuration error.
type Route struct {
	target string
}

// Continue routes the run to the node with the given id.
func Continue(nodeID string) Route {
	return Route{target: nodeID}
}

// Stop terminates the run.
func Stop() Route {
	return Route{target: End}
}

// Stopped reports whether the route terminates the run.
func (r Route) Stopped() bool {
	return r.target == End
}

// Next returns the target node id, or End.
func (r Route) Next() string {
	return r.target
}

func (r Route) String() string {
	if r.Stopped() {
		return "stop"
	}
	return "continue(" + r.target + ")"
}

// Router inspects the state after a node ran and picks the next step.
// Routers must be pure: the same state always yields the same route.
type Router func(state *domain.State) Route
