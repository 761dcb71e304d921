package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// NewFunc builds a Tool whose implementation receives the arguments as a map.
func NewFunc(name, description string, params map[string]any, fn func(ctx context.Context, args map[string]any) (string, error)) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Parameters:  params,
		Execute: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args := map[string]any{}
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("%w: %v", domain.ErrMalformedArguments, err)
			}
			return fn(ctx, args)
		},
	}
}

// NewTyped builds a Tool whose arguments are decoded into T.
// Fields are matched by their `json` tag; unknown keys are rejected.
func NewTyped[T any](name, description string, params map[string]any, fn func(ctx context.Context, args T) (string, error)) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Parameters:  params,
		Execute: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := Decode[T](raw)
			if err != nil {
				return "", err
			}
			return fn(ctx, args)
		},
	}
}

// Decode converts raw JSON arguments into T.
// Failures wrap domain.ErrMalformedArguments.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T

	var generic any
	if err := json.Unmarshal(normalizeArgs(raw), &generic); err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrMalformedArguments, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		ErrorUnused:      true,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(generic); err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrMalformedArguments, err)
	}
	return out, nil
}
