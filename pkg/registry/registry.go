package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/xeipuuv/gojsonschema"
)

// ExecuteFunc runs a tool with the raw JSON arguments chosen by the model.
type ExecuteFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Tool is a named, described, schema-carrying executable capability.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object. Nil means "any JSON object".
	Parameters map[string]any
	Execute    ExecuteFunc
}

// Schema returns the model-facing descriptor of the tool.
func (t Tool) Schema() domain.Tool {
	return domain.Tool{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

type entry struct {
	tool   Tool
	schema *gojsonschema.Schema
}

// Registry manages the available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*entry
	order []string
}

// New creates a registry holding the given tools.
// It fails on the first invalid or duplicate tool.
func New(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]*entry)}
	if err := r.Register(tools...); err != nil {
		return nil, err
	}
	return r, nil
}

// MustNew is like New but panics on error. Intended for static wiring.
func MustNew(tools ...Tool) *Registry {
	r, err := New(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds tools to the registry.
// A name that is already registered yields domain.ErrDuplicateTool.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tools {
		if t.Name == "" {
			return errors.New("tool name is required")
		}
		if t.Execute == nil {
			return fmt.Errorf("tool '%s' has no Execute function", t.Name)
		}
		if _, exists := r.tools[t.Name]; exists {
			return fmt.Errorf("%w: '%s'", domain.ErrDuplicateTool, t.Name)
		}

		var schema *gojsonschema.Schema
		if t.Parameters != nil {
			s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.Parameters))
			if err != nil {
				return fmt.Errorf("tool '%s' has an invalid parameter schema: %w", t.Name, err)
			}
			schema = s
		}

		r.tools[t.Name] = &entry{tool: t, schema: schema}
		r.order = append(r.order, t.Name)
	}
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return Tool{}, false
	}
	return e.tool, true
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Schemas returns the model-facing descriptors in registration order.
func (r *Registry) Schemas() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].tool.Schema())
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Execute resolves and runs the tool requested by call.
// Every failure is returned as a *domain.ToolError carrying its kind.
func (r *Registry) Execute(ctx context.Context, call domain.ToolCall) (output string, err error) {
	r.mu.RLock()
	e, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		return "", &domain.ToolError{
			Kind:   domain.KindUnknownTool,
			Tool:   call.Name,
			CallID: call.ID,
			Err:    fmt.Errorf("no tool named '%s' is registered", call.Name),
		}
	}

	args := normalizeArgs(call.Arguments)
	if err := validate(e.schema, args); err != nil {
		return "", &domain.ToolError{Kind: domain.KindMalformedArguments, Tool: call.Name, CallID: call.ID, Err: err}
	}

	defer func() {
		if rec := recover(); rec != nil {
			output = ""
			err = &domain.ToolError{
				Kind:   domain.KindToolExecutionFailure,
				Tool:   call.Name,
				CallID: call.ID,
				Err:    fmt.Errorf("panic: %v\n%s", rec, debug.Stack()),
			}
		}
	}()

	output, err = e.tool.Execute(ctx, args)
	if err != nil {
		kind := domain.KindToolExecutionFailure
		if errors.Is(err, domain.ErrMalformedArguments) {
			kind = domain.KindMalformedArguments
		}
		return "", &domain.ToolError{Kind: kind, Tool: call.Name, CallID: call.ID, Err: err}
	}
	return output, nil
}

// normalizeArgs treats missing arguments as an empty object.
func normalizeArgs(raw json.RawMessage) json.RawMessage {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}

func validate(schema *gojsonschema.Schema, args json.RawMessage) error {
	if !json.Valid(args) {
		return fmt.Errorf("arguments are not valid JSON: %s", truncate(string(args), 120))
	}
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("validation errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
