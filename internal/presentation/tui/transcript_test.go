package tui

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_Print(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTranscript(&buf, termenv.Ascii, nil)

	tr.Print([]domain.Message{
		domain.UserMessage("weather?"),
		domain.AssistantMessage("", domain.ToolCall{ID: "1", Name: "weather", Arguments: json.RawMessage(`{"city":"Lisbon"}`)}),
		domain.ToolResultMessage("1", "sunny\n  22C"),
		domain.ToolErrorMessage("2", errors.New("boom")),
		domain.AssistantMessage("It is **sunny**."),
	}, false)

	out := buf.String()
	assert.NotContains(t, out, "you:")
	assert.Contains(t, out, `  -> call weather({"city":"Lisbon"})`)
	assert.Contains(t, out, "  <- result sunny 22C")
	assert.Contains(t, out, "  <- error boom")
	assert.Contains(t, out, "assistant:\nIt is **sunny**.")
	assert.NotContains(t, out, "\x1b[", "ascii profile has no escape codes")
}

func TestTranscript_EchoAndError(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTranscript(&buf, termenv.Ascii, func(s string) (string, error) { return strings.ToUpper(s) + "\n\n", nil })

	tr.Print([]domain.Message{domain.UserMessage("hi"), domain.AssistantMessage("hello")}, true)
	tr.Error(errors.New("aborted"))

	assert.Equal(t, "you: hi\nassistant:\nHELLO\nerror: aborted\n", buf.String())
}

func TestRendererAndBanner(t *testing.T) {
	render, err := NewRenderer()
	require.NoError(t, err)
	out, err := render("# Title")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")

	var buf bytes.Buffer
	PrintBanner(&buf, termenv.Ascii)
	assert.Contains(t, buf.String(), `|___/`)
}
