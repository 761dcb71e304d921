package middleware_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/agentgraph/pkg/adapters/memory"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{`\b\d{3}-\d{2}-\d{4}\b`, `[\w.]+@[\w.]+`})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	cp := secretCheckpoint("t1", 1, "my ssn is 999-99-9999, mail jdoe@example.com")
	cp.State = cp.State.Append(domain.AssistantMessage("noted"))

	require.NoError(t, secure.Put(ctx, cp))

	assert.Equal(t, "my ssn is 999-99-9999, mail jdoe@example.com", cp.State.Messages[0].Content,
		"middleware must not modify the caller's state")

	stored, err := underlying.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "my ssn is ***, mail ***", stored.State.Messages[0].Content)
	assert.Equal(t, "noted", stored.State.Messages[1].Content)
}

func TestPIIMiddleware_MasksToolArguments(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{`\b\d{3}-\d{2}-\d{4}\b`, `[\w.]+@[\w.]+`})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	args := `{"to":"jdoe@example.com","ssn":"999-99-9999"}`
	cp := secretCheckpoint("t1", 1, "mail my ssn to jdoe@example.com")
	cp.State = cp.State.Append(domain.AssistantMessage("",
		domain.ToolCall{ID: "c1", Name: "send_mail", Arguments: json.RawMessage(args)},
		domain.ToolCall{ID: "c2", Name: "now"},
	))

	require.NoError(t, secure.Put(ctx, cp))
	assert.Equal(t, args, string(cp.State.Messages[1].ToolCalls[0].Arguments),
		"middleware must not modify the caller's tool calls")

	stored, err := underlying.Get(ctx, "t1")
	require.NoError(t, err)
	calls := stored.State.Messages[1].ToolCalls
	require.Len(t, calls, 2)
	assert.Equal(t, `{"to":"***","ssn":"***"}`, string(calls[0].Arguments))
	assert.NotContains(t, string(calls[0].Arguments), "999-99-9999")
	assert.Empty(t, calls[1].Arguments)
	assert.Equal(t, "mail my ssn to ***", stored.State.Messages[0].Content)
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_AppliesOutermostFirst(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"secret"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	// PII masking runs before encryption.
	store := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, secretCheckpoint("t1", 1, "the secret word")))

	raw, err := underlying.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, raw.State)

	loaded, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "the *** word", loaded.State.Messages[0].Content)
}
