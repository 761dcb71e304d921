package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role identifies the author of a Message.
type Role string

const (
	// RoleSystem carries instructions for the model. It is never stored in history.
	RoleSystem Role = "system"
	// RoleUser is a message written by the human side of the conversation.
	RoleUser Role = "user"
	// RoleAssistant is a reply produced by the model, possibly requesting tools.
	RoleAssistant Role = "assistant"
	// RoleTool is the result of one tool call.
	RoleTool Role = "tool"
)

// ToolCall represents a request from the model to execute a named tool.
// Compatible with OpenAI/Anthropic tool call shapes.
type ToolCall struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// toolCallJSON is the persisted form of a ToolCall. Arguments travel as an
// opaque string: models may emit malformed JSON, and history must survive a
// store round-trip byte for byte.
type toolCallJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MarshalJSON encodes Arguments as a JSON string holding the raw bytes.
func (c ToolCall) MarshalJSON() ([]byte, error) {
	out := toolCallJSON{ID: c.ID, Name: c.Name}
	if len(c.Arguments) > 0 {
		s, err := json.Marshal(string(c.Arguments))
		if err != nil {
			return nil, err
		}
		out.Arguments = s
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts Arguments either as a string (the persisted form)
// or as an inline JSON value.
func (c *ToolCall) UnmarshalJSON(data []byte) error {
	var in toolCallJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.ID, c.Name, c.Arguments = in.ID, in.Name, nil

	raw := bytes.TrimSpace(in.Arguments)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("tool call '%s': arguments: %w", in.ID, err)
		}
		if s != "" {
			c.Arguments = json.RawMessage(s)
		}
	default:
		c.Arguments = append(json.RawMessage(nil), raw...)
	}
	return nil
}

// Message is one immutable entry of the conversation record.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is only populated for assistant messages.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool result back to the ToolCall that produced it.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// IsError marks a tool result whose content describes a failure.
	IsError bool `json:"is_error,omitempty"`
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message with optional tool calls.
func AssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultMessage builds a successful tool result for the given call.
func ToolResultMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// ToolErrorMessage builds an error-flagged tool result for the given call.
// The content is the error description so the model can react to it.
func ToolErrorMessage(callID string, err error) Message {
	return Message{Role: RoleTool, Content: err.Error(), ToolCallID: callID, IsError: true}
}

// HasToolCalls reports whether m is an assistant message requesting at least one tool.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			out.ToolCalls[i] = c
			if c.Arguments != nil {
				out.ToolCalls[i].Arguments = append(json.RawMessage(nil), c.Arguments...)
			}
		}
	}
	return out
}
