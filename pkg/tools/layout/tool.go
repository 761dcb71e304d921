package layout

import (
	"context"
	"fmt"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/registry"
)

// ToolName is the name the model calls.
const ToolName = "compile_layout"

func parameters() map[string]any {
	kinds := make([]any, 0, len(modes))
	for _, k := range Kinds() {
		kinds = append(kinds, k)
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"device": map[string]any{"type": "string", "description": "Board name, e.g. esp32"},
			"slots": map[string]any{
				"type":          "object",
				"description":   "Peripherals keyed by slot label",
				"minProperties": 1,
				"additionalProperties": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"kind":  map[string]any{"type": "string", "enum": kinds},
						"pin":   map[string]any{"type": "integer", "minimum": 0},
						"label": map[string]any{"type": "string"},
					},
					"required":             []any{"kind", "pin"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"device", "slots"},
		"additionalProperties": false,
	}
}

// Tool returns the compile_layout tool.
func Tool() registry.Tool {
	return registry.NewTyped(ToolName,
		"Compile a device layout (slots wired to pins) into Arduino setup source code.",
		parameters(),
		func(_ context.Context, l Layout) (string, error) {
			src, err := Compile(l)
			if err != nil {
				return "", fmt.Errorf("%w: %w", domain.ErrMalformedArguments, err)
			}
			return src, nil
		})
}
