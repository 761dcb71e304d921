// Package testutils holds fakes shared by the package tests.
package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// Reply is one scripted model answer. Err takes precedence over Message.
type Reply struct {
	Message domain.Message
	Err     error
	// Block makes Generate wait for ctx to end before answering.
	Block bool
}

// ScriptedModel is a ports.Model that plays back replies in order and records
// every request it receives.
type ScriptedModel struct {
	mu       sync.Mutex
	replies  []Reply
	requests []ports.ModelRequest
}

var _ ports.Model = (*ScriptedModel)(nil)

// NewScriptedModel creates a model that answers with replies in order.
func NewScriptedModel(replies ...Reply) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

// Say is a Reply with a plain assistant answer.
func Say(content string) Reply {
	return Reply{Message: domain.AssistantMessage(content)}
}

// Call is a Reply requesting the given tool calls.
func Call(calls ...domain.ToolCall) Reply {
	return Reply{Message: domain.AssistantMessage("", calls...)}
}

// Fail is a Reply that makes Generate return err.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// ToolCall builds a call whose arguments are args marshaled to JSON.
func ToolCall(id, name string, args any) domain.ToolCall {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return domain.ToolCall{ID: id, Name: name, Arguments: raw}
}

// Generate implements ports.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req ports.ModelRequest) (domain.Message, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	if len(m.replies) == 0 {
		m.mu.Unlock()
		return domain.Message{}, fmt.Errorf("scripted model exhausted after %d requests", len(m.requests))
	}
	next := m.replies[0]
	m.replies = m.replies[1:]
	m.mu.Unlock()

	if next.Block {
		<-ctx.Done()
		return domain.Message{}, ctx.Err()
	}
	if next.Err != nil {
		return domain.Message{}, next.Err
	}
	return next.Message, nil
}

// Requests returns a copy of the requests received so far.
func (m *ScriptedModel) Requests() []ports.ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.ModelRequest(nil), m.requests...)
}

// Remaining returns how many replies have not been consumed.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replies)
}
