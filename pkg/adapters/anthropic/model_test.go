package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	System    []map[string]any `json:"system"`
	Messages  []struct {
		Role    string           `json:"role"`
		Content []map[string]any `json:"content"`
	} `json:"messages"`
	Tools []map[string]any `json:"tools"`
}

func newServer(t *testing.T, status int, reply string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		if got != nil {
			require.NoError(t, json.Unmarshal(body, got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newModel(srv *httptest.Server) *Model {
	return New("claude-test",
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL+"/"),
		WithRequestOptions(option.WithMaxRetries(0)),
	)
}

const toolUseReply = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-test",
  "content": [
    {"type": "text", "text": "Checking."},
    {"type": "tool_use", "id": "toolu_1", "name": "weather", "input": {"city": "Lisbon"}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 12, "output_tokens": 7}
}`

func TestGenerate_ToolUse(t *testing.T) {
	var got captured
	srv := newServer(t, http.StatusOK, toolUseReply, &got)

	msg, err := newModel(srv).Generate(context.Background(), ports.ModelRequest{
		SystemPrompt: "be brief",
		Messages: []domain.Message{
			domain.UserMessage("weather in two cities?"),
			domain.AssistantMessage("",
				domain.ToolCall{ID: "t1", Name: "weather", Arguments: json.RawMessage(`{"city":"Porto"}`)},
				domain.ToolCall{ID: "t2", Name: "weather", Arguments: json.RawMessage(`{"city":"Faro"}`)},
			),
			domain.ToolResultMessage("t1", "sunny"),
			domain.ToolErrorMessage("t2", assert.AnError),
			domain.UserMessage("and Lisbon?"),
		},
		Tools: []domain.Tool{{
			Name:        "weather",
			Description: "current weather",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"city": map[string]any{"type": "string"}},
				"required":   []any{"city"},
			},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RoleAssistant, msg.Role)
	assert.Equal(t, "Checking.", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "toolu_1", msg.ToolCalls[0].ID)
	assert.JSONEq(t, `{"city":"Lisbon"}`, string(msg.ToolCalls[0].Arguments))

	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.System, 1)
	assert.Equal(t, "be brief", got.System[0]["text"])

	require.Len(t, got.Messages, 4)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Len(t, got.Messages[1].Content, 2)

	results := got.Messages[2]
	assert.Equal(t, "user", results.Role)
	require.Len(t, results.Content, 2, "tool results are grouped in one turn")
	assert.Equal(t, "tool_result", results.Content[0]["type"])
	assert.Equal(t, "t1", results.Content[0]["tool_use_id"])
	assert.Equal(t, true, results.Content[1]["is_error"])

	require.Len(t, got.Tools, 1)
	assert.Equal(t, "weather", got.Tools[0]["name"])
	schema := got.Tools[0]["input_schema"].(map[string]any)
	assert.Equal(t, []any{"city"}, schema["required"])
}

func TestGenerate_APIError(t *testing.T) {
	srv := newServer(t, http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, nil)
	_, err := newModel(srv).Generate(context.Background(), ports.ModelRequest{Messages: []domain.Message{domain.UserMessage("hi")}})
	assert.ErrorContains(t, err, "anthropic api error")
}

func TestBuildMessages_RejectsSystemRole(t *testing.T) {
	_, err := buildMessages([]domain.Message{{Role: domain.RoleSystem, Content: "x"}})
	assert.ErrorContains(t, err, "unsupported role")
}

func TestBuildMessages_ReplacesMalformedToolInput(t *testing.T) {
	out, err := buildMessages([]domain.Message{
		domain.UserMessage("weather?"),
		domain.AssistantMessage("", domain.ToolCall{ID: "c1", Name: "weather", Arguments: json.RawMessage(`{"city": "Rec`)}),
		domain.ToolErrorMessage("c1", errors.New("MalformedArguments")),
	})
	require.NoError(t, err)

	data, err := json.Marshal(out)
	require.NoError(t, err, "history with malformed arguments must still encode")
	assert.Contains(t, string(data), `"input":{}`)
}
