/*
Package graph defines and compiles the node graph driven by the executor.

A graph is built with a Builder (nodes, static edges, conditional edges and
one entry node) and compiled into an immutable Graph. Compilation collects
every problem it finds into a single *ConfigError; nothing is dropped
silently.

	g, err := graph.New().
		AddNode("agent", agentNode).
		AddNode("tools", toolNode).
		AddConditionalEdge("agent", agent.ToolsCondition("tools"), "tools").
		AddEdge("tools", "agent").
		SetEntry("agent").
		Compile()

Runs end only when a Router returns Stop.
*/
package graph
