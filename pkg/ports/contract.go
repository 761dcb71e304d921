package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a CheckpointStore
// implementation adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	threadID := "contract-test-thread-" + time.Now().Format("20060102150405.000000000")

	sample := func(id string, step int) *domain.Checkpoint {
		state := domain.NewState(id,
			domain.UserMessage("what is the weather?"),
			domain.AssistantMessage("", domain.ToolCall{ID: "call-1", Name: "weather", Arguments: json.RawMessage(`{"city":"Recife"}`)}),
			domain.ToolResultMessage("call-1", "31C and sunny"),
			domain.ToolErrorMessage("call-2", fmt.Errorf("UnknownTool: tool 'nope'")),
		)
		return &domain.Checkpoint{
			ThreadID:  id,
			State:     state,
			Step:      step,
			NextNode:  "agent",
			Status:    domain.StatusActive,
			UpdatedAt: time.Now().UTC(),
		}
	}

	t.Run("Put and Get", func(t *testing.T) {
		cp := sample(threadID, 2)

		err := store.Put(ctx, cp)
		require.NoError(t, err, "Put should not return error")

		loaded, err := store.Get(ctx, threadID)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, cp.ThreadID, loaded.ThreadID)
		assert.Equal(t, cp.Step, loaded.Step)
		assert.Equal(t, cp.NextNode, loaded.NextNode)
		assert.Equal(t, cp.Status, loaded.Status)
		assert.Equal(t, cp.State, loaded.State, "round-trip must preserve the conversation exactly")
	})

	t.Run("Tool Arguments Round-Trip Verbatim", func(t *testing.T) {
		id := threadID + "-args"
		defer func() { _ = store.Delete(ctx, id) }()

		for _, args := range []string{
			`{"city": "Rec`,
			`{"q": "a<b && c>d"}`,
			"{\n  \"city\" : \"Recife\"\n}",
			`not json at all`,
		} {
			cp := sample(id, 1)
			cp.State = cp.State.Append(domain.AssistantMessage("",
				domain.ToolCall{ID: "call-3", Name: "weather", Arguments: json.RawMessage(args)}))
			require.NoError(t, store.Put(ctx, cp), "Put must accept arguments %q", args)

			loaded, err := store.Get(ctx, id)
			require.NoError(t, err)
			last, ok := loaded.State.Last()
			require.True(t, ok)
			require.Len(t, last.ToolCalls, 1)
			assert.Equal(t, args, string(last.ToolCalls[0].Arguments))
			assert.Equal(t, cp.State, loaded.State)
		}
	})

	t.Run("Put Overwrites", func(t *testing.T) {
		cp := sample(threadID, 3)
		cp.State = cp.State.Append(domain.AssistantMessage("It is sunny."))
		cp.Status = domain.StatusTerminated
		require.NoError(t, store.Put(ctx, cp))

		loaded, err := store.Get(ctx, threadID)
		require.NoError(t, err)
		assert.Equal(t, 3, loaded.Step)
		assert.Equal(t, 5, loaded.State.Len())
		assert.Equal(t, domain.StatusTerminated, loaded.Status)
	})

	t.Run("Get Returns Isolated Copy", func(t *testing.T) {
		loaded, err := store.Get(ctx, threadID)
		require.NoError(t, err)
		loaded.State.Messages[0].Content = "tampered"

		again, err := store.Get(ctx, threadID)
		require.NoError(t, err)
		assert.Equal(t, "what is the weather?", again.State.Messages[0].Content)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "non-existent-"+threadID)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
	})

	t.Run("Concurrent Put and Get", func(t *testing.T) {
		id := threadID + "-concurrent"
		require.NoError(t, store.Put(ctx, sample(id, 1)))
		defer func() { _ = store.Delete(ctx, id) }()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func(step int) {
				defer wg.Done()
				_ = store.Put(ctx, sample(id, step))
			}(i + 2)
			go func() {
				defer wg.Done()
				cp, err := store.Get(ctx, id)
				if assert.NoError(t, err) {
					assert.Equal(t, 4, cp.State.Len(), "reader must never observe a partial checkpoint")
				}
			}()
		}
		wg.Wait()
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, sample(threadID, 4)))

		err := store.Delete(ctx, threadID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Get(ctx, threadID)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound, "Get after Delete should return ErrCheckpointNotFound")

		assert.NoError(t, store.Delete(ctx, threadID), "Delete of a missing thread is a no-op")
	})

	t.Run("List", func(t *testing.T) {
		id1 := threadID + "-1"
		id2 := threadID + "-2"
		require.NoError(t, store.Put(ctx, sample(id1, 1)))
		require.NoError(t, store.Put(ctx, sample(id2, 1)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		threads, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, threads, id1)
		assert.Contains(t, threads, id2)
	})
}
