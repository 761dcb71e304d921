package layout

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifier(t *testing.T) {
	tests := map[string]string{
		"1":          "SLOT_1",
		"front door": "FRONT_DOOR",
		"led-2":      "LED_2",
		"  ":         "SLOT",
		"éé":         "SLOT",
		"int":        "INT_",
		"_x_":        "X",
		"3rd/relay":  "SLOT_3RD_RELAY",
	}
	for in, want := range tests {
		assert.Equal(t, want, Identifier(in), "key %q", in)
	}
}

func TestCompile(t *testing.T) {
	src, err := Compile(Layout{
		Device: "esp32",
		Slots: map[string]Slot{
			"1":      {Kind: "led", Pin: 2, Label: "status"},
			"2":      {Kind: "Button", Pin: 4},
			"door-1": {Kind: "sensor", Pin: 5},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, `// Generated setup for esp32.
const int SLOT_1_PIN = 2; // led: status (slot "1")
const int SLOT_2_PIN = 4; // button (slot "2")
const int DOOR_1_PIN = 5; // sensor (slot "door-1")

void setup() {
  pinMode(SLOT_1_PIN, OUTPUT);
  pinMode(SLOT_2_PIN, INPUT_PULLUP);
  pinMode(DOOR_1_PIN, INPUT);
}
`, src)
}

func TestCompile_CollidingIdentifiers(t *testing.T) {
	src, err := Compile(Layout{Device: "uno", Slots: map[string]Slot{
		"a b": {Kind: "led", Pin: 1},
		"a-b": {Kind: "led", Pin: 2},
	}})
	require.NoError(t, err)
	assert.Contains(t, src, "const int A_B_PIN = 1;")
	assert.Contains(t, src, "const int A_B_PIN_2 = 2;")
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(Layout{})
	assert.ErrorContains(t, err, "device is required")
	assert.ErrorContains(t, err, "at least one slot is required")

	_, err = Compile(Layout{Device: "uno", Slots: map[string]Slot{
		"a": {Kind: "led", Pin: 3},
		"b": {Kind: "relay", Pin: 3},
		"c": {Kind: "laser", Pin: 4},
	}})
	assert.ErrorContains(t, err, "pin 3 already used by slot 'a'")
	assert.ErrorContains(t, err, "unknown kind 'laser'")
}

func TestCompile_CommentInjection(t *testing.T) {
	src, err := Compile(Layout{Device: "uno\n#include <evil>", Slots: map[string]Slot{
		"x": {Kind: "led", Pin: 1, Label: "a */ b"},
	}})
	require.NoError(t, err)
	assert.NotContains(t, src, "\n#include")
	assert.NotContains(t, src, "*/")
}

func TestTool(t *testing.T) {
	reg := registry.MustNew(Tool())
	ctx := context.Background()

	out, err := reg.Execute(ctx, domain.ToolCall{ID: "1", Name: ToolName,
		Arguments: json.RawMessage(`{"device":"esp32","slots":{"7":{"kind":"relay","pin":12}}}`)})
	require.NoError(t, err)
	assert.Contains(t, out, "pinMode(SLOT_7_PIN, OUTPUT);")

	_, err = reg.Execute(ctx, domain.ToolCall{ID: "2", Name: ToolName,
		Arguments: json.RawMessage(`{"device":"esp32","slots":{"7":{"kind":"laser","pin":12}}}`)})
	assert.ErrorIs(t, err, domain.ErrMalformedArguments, "schema enum")

	_, err = reg.Execute(ctx, domain.ToolCall{ID: "3", Name: ToolName,
		Arguments: json.RawMessage(`{"device":"esp32","slots":{"a":{"kind":"led","pin":1},"b":{"kind":"led","pin":1}}}`)})
	assert.ErrorIs(t, err, domain.ErrMalformedArguments, "compile error")
}
