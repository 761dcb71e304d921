package middleware

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// Mask replaces every redacted span.
const Mask = "***"

type piiMiddleware struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks message content and tool
// call arguments matching any of the patterns before they are persisted. The in-memory state is untouched.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Put(ctx context.Context, cp *domain.Checkpoint) error {
	// Clone to avoid side effects on the state used by the executor.
	cloned := cp.Clone()
	if cloned.State != nil {
		for i := range cloned.State.Messages {
			msg := &cloned.State.Messages[i]
			msg.Content = m.mask(msg.Content)
			// Arguments are stored opaquely, so a mask inside them need not keep them valid JSON.
			for j := range msg.ToolCalls {
				if args := msg.ToolCalls[j].Arguments; len(args) > 0 {
					msg.ToolCalls[j].Arguments = json.RawMessage(m.mask(string(args)))
				}
			}
		}
	}
	return m.next.Put(ctx, cloned)
}

func (m *piiMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}

func (m *piiMiddleware) Get(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	return m.next.Get(ctx, threadID)
}

func (m *piiMiddleware) Delete(ctx context.Context, threadID string) error {
	return m.next.Delete(ctx, threadID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
