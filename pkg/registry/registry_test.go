package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var citySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"city": map[string]any{"type": "string"},
	},
	"required": []any{"city"},
}

func weatherTool() registry.Tool {
	return registry.NewFunc("weather", "Current weather for a city", citySchema,
		func(_ context.Context, args map[string]any) (string, error) {
			return "sunny in " + args["city"].(string), nil
		})
}

func call(name, args string) domain.ToolCall {
	return domain.ToolCall{ID: "call-1", Name: name, Arguments: json.RawMessage(args)}
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	_, err := registry.New(weatherTool(), weatherTool())
	assert.ErrorIs(t, err, domain.ErrDuplicateTool)
}

func TestRegistry_RegisterValidatesDescriptor(t *testing.T) {
	_, err := registry.New(registry.Tool{Name: "", Execute: func(context.Context, json.RawMessage) (string, error) { return "", nil }})
	assert.Error(t, err)

	_, err = registry.New(registry.Tool{Name: "noop"})
	assert.Error(t, err)

	_, err = registry.New(registry.Tool{
		Name:       "bad",
		Parameters: map[string]any{"type": 42},
		Execute:    func(context.Context, json.RawMessage) (string, error) { return "", nil },
	})
	assert.Error(t, err)
}

func TestRegistry_SchemasKeepRegistrationOrder(t *testing.T) {
	noop := func(context.Context, json.RawMessage) (string, error) { return "", nil }
	r := registry.MustNew(
		registry.Tool{Name: "b", Execute: noop},
		registry.Tool{Name: "a", Description: "first letter", Execute: noop},
	)

	schemas := r.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "b", schemas[0].Name)
	assert.Equal(t, "a", schemas[1].Name)
	assert.Equal(t, "first letter", schemas[1].Description)
	assert.Equal(t, []string{"b", "a"}, r.Names())
}

func TestRegistry_Execute(t *testing.T) {
	r := registry.MustNew(weatherTool())
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		out, err := r.Execute(ctx, call("weather", `{"city":"Recife"}`))
		require.NoError(t, err)
		assert.Equal(t, "sunny in Recife", out)
	})

	t.Run("UnknownTool", func(t *testing.T) {
		_, err := r.Execute(ctx, call("stock_price", `{}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnknownTool)
		assert.Equal(t, domain.KindUnknownTool, domain.KindOf(err))
		assert.True(t, strings.HasPrefix(err.Error(), "UnknownTool: tool 'stock_price'"))
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := r.Execute(ctx, call("weather", `{"city":`))
		assert.ErrorIs(t, err, domain.ErrMalformedArguments)
	})

	t.Run("SchemaViolation", func(t *testing.T) {
		_, err := r.Execute(ctx, call("weather", `{"town":"Recife"}`))
		require.Error(t, err)
		assert.Equal(t, domain.KindMalformedArguments, domain.KindOf(err))
		assert.Contains(t, err.Error(), "city")
	})

	t.Run("MissingArgumentsAreEmptyObject", func(t *testing.T) {
		_, err := r.Execute(ctx, call("weather", ``))
		assert.ErrorIs(t, err, domain.ErrMalformedArguments, "empty object still misses the required field")
	})
}

func TestRegistry_ExecuteClassifiesToolFailures(t *testing.T) {
	r := registry.MustNew(
		registry.NewFunc("fails", "", nil, func(context.Context, map[string]any) (string, error) {
			return "", errors.New("backend unavailable")
		}),
		registry.NewFunc("panics", "", nil, func(context.Context, map[string]any) (string, error) {
			panic("nil map")
		}),
	)
	ctx := context.Background()

	_, err := r.Execute(ctx, call("fails", `{}`))
	assert.ErrorIs(t, err, domain.ErrToolExecution)
	assert.Equal(t, "ToolExecutionFailure: tool 'fails': backend unavailable", err.Error())

	out, err := r.Execute(ctx, call("panics", `{}`))
	assert.Empty(t, out)
	assert.ErrorIs(t, err, domain.ErrToolExecution)
	assert.Contains(t, err.Error(), "panic: nil map")
}

type searchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func TestNewTyped(t *testing.T) {
	var got searchArgs
	tool := registry.NewTyped("search", "", nil, func(_ context.Context, args searchArgs) (string, error) {
		got = args
		return "ok", nil
	})
	r := registry.MustNew(tool)
	ctx := context.Background()

	out, err := r.Execute(ctx, call("search", `{"query":"pumps","limit":3}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, searchArgs{Query: "pumps", Limit: 3}, got)

	_, err = r.Execute(ctx, call("search", `{"query":"pumps","extra":true}`))
	assert.ErrorIs(t, err, domain.ErrMalformedArguments, "unknown keys are rejected")

	_, err = r.Execute(ctx, call("search", `{"query":7}`))
	assert.ErrorIs(t, err, domain.ErrMalformedArguments)
}
