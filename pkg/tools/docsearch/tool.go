package docsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/registry"
)

// ToolName is the name the model calls.
const ToolName = "search_documents"

// DefaultLimit is used when the model does not ask for a limit.
const DefaultLimit = 5

// Args are the tool arguments.
type Args struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Output is the JSON document returned to the model.
type Output struct {
	Query   string   `json:"query"`
	Count   int      `json:"count"`
	Results []Result `json:"results"`
}

var parameters = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"query": map[string]any{"type": "string", "description": "Keywords to look for", "minLength": 1},
		"limit": map[string]any{"type": "integer", "description": "Maximum passages to return", "minimum": 1, "maximum": 20},
	},
	"required":             []any{"query"},
	"additionalProperties": false,
}

// Tool exposes idx as the search_documents tool.
func Tool(idx *Index) registry.Tool {
	return registry.NewTyped(ToolName,
		"Search the reference documents and return the most relevant passages with their source file.",
		parameters,
		func(_ context.Context, args Args) (string, error) {
			if strings.TrimSpace(args.Query) == "" {
				return "", fmt.Errorf("%w: query is empty", domain.ErrMalformedArguments)
			}
			limit := args.Limit
			if limit <= 0 {
				limit = DefaultLimit
			}
			out := Output{Query: args.Query, Results: idx.Search(args.Query, limit)}
			if out.Results == nil {
				out.Results = []Result{}
			}
			out.Count = len(out.Results)
			b, err := json.Marshal(out)
			if err != nil {
				return "", err
			}
			return string(b), nil
		})
}
