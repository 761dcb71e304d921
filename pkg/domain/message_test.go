package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolCall_JSONKeepsArgumentsVerbatim(t *testing.T) {
	for _, args := range []string{
		`{"city": "Rec`,
		`{"q": "a<b"}`,
		"{ \"spaced\" :  1 }",
	} {
		call := ToolCall{ID: "c1", Name: "weather", Arguments: json.RawMessage(args)}

		data, err := json.Marshal(call)
		require.NoError(t, err, "arguments %q", args)

		var got ToolCall
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, call, got)
	}
}

func TestToolCall_JSONEmptyArguments(t *testing.T) {
	data, err := json.Marshal(ToolCall{ID: "c1", Name: "now"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"c1","name":"now"}`, string(data))

	var got ToolCall
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Nil(t, got.Arguments)
}

func TestToolCall_UnmarshalInlineArguments(t *testing.T) {
	var got ToolCall
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1","name":"weather","arguments":{"city":"Recife"}}`), &got))
	assert.Equal(t, `{"city":"Recife"}`, string(got.Arguments))

	require.NoError(t, json.Unmarshal([]byte(`{"id":"c2","name":"weather","arguments":null}`), &got))
	assert.Equal(t, "c2", got.ID)
	assert.Nil(t, got.Arguments)
}
