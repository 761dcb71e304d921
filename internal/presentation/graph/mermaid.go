package graph

import (
	"fmt"
	"strings"

	core "github.com/aretw0/agentgraph/pkg/graph"
)

// endID is the mermaid node standing for the router's stop.
const endID = "__end__"

// GraphOverlay contains thread state to visualize on the graph.
type GraphOverlay struct {
	// CurrentNode is where the thread resumes.
	CurrentNode string
	// Terminated highlights the end node instead.
	Terminated bool
}

// GenerateMermaid produces a Mermaid flowchart of the compiled graph.
// Shapes:
// - Entry: ((Circle))
// - End: (((Double circle)))
// - Default: [Rectangle]
// Conditional edges are dotted and always include the stop branch.
func GenerateMermaid(g *core.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range g.Nodes() {
		opener, closer := "[", "]"
		if id == g.Entry() {
			opener, closer = "((", "))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(id), opener, escape(id), closer)
	}
	fmt.Fprintf(&sb, "    %s(((\"end\")))\n", endID)

	for _, e := range g.Edges() {
		from := sanitizeMermaidID(e.From)
		if !e.Conditional() {
			fmt.Fprintf(&sb, "    %s --> %s\n", from, sanitizeMermaidID(e.To))
			continue
		}
		for _, to := range e.Targets {
			fmt.Fprintf(&sb, "    %s -.-> %s\n", from, sanitizeMermaidID(to))
		}
		fmt.Fprintf(&sb, "    %s -. stop .-> %s\n", from, endID)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		switch {
		case overlay.Terminated:
			fmt.Fprintf(&sb, "    class %s current;\n", endID)
		case overlay.CurrentNode != "":
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_", "\"", "_")
	return r.Replace(id)
}
