package agentgraph_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/agentgraph"
	"github.com/aretw0/agentgraph/internal/testutils"
	"github.com/aretw0/agentgraph/pkg/adapters/memory"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/graph"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/aretw0/agentgraph/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ChatAndInspect(t *testing.T) {
	store := memory.NewStore()
	tools := registry.MustNew(registry.NewFunc("clock", "Current time", nil,
		func(context.Context, map[string]any) (string, error) { return "12:00", nil }))
	model := testutils.NewScriptedModel(
		testutils.Call(domain.ToolCall{ID: "c1", Name: "clock"}),
		testutils.Say("It is noon."),
	)

	eng, err := agentgraph.NewAgent(model, tools, agentgraph.WithStore(store), agentgraph.WithSystemPrompt("terse"))
	require.NoError(t, err)
	ctx := context.Background()

	state, err := eng.Chat(ctx, "t1", "what time is it?")
	require.NoError(t, err)
	assert.Equal(t, 4, state.Len())
	assert.Equal(t, "terse", model.Requests()[0].SystemPrompt)

	cp, err := eng.Thread(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, cp.Step)
	assert.Equal(t, domain.StatusTerminated, cp.Status)

	threads, err := eng.Threads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, threads)

	require.NoError(t, eng.Delete(ctx, "t1"))
	_, err = eng.Thread(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

	assert.Equal(t, "agent", eng.Graph().Entry())
	assert.Same(t, store, eng.Store())
}

func TestEngine_ConversationContinuesAcrossRuns(t *testing.T) {
	model := testutils.NewScriptedModel(testutils.Say("Hi Ana."), testutils.Say("Your name is Ana."))
	eng, err := agentgraph.NewAgent(model, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = eng.Chat(ctx, "t1", "I am Ana")
	require.NoError(t, err)
	state, err := eng.Chat(ctx, "t1", "what is my name?")
	require.NoError(t, err)

	require.Equal(t, 4, state.Len())
	assert.Len(t, model.Requests()[1].Messages, 3, "second turn sees the first exchange")
}

func TestEngine_SerializesRunsOfOneThread(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		overlap bool
	)
	model := ports.ModelFunc(func(context.Context, ports.ModelRequest) (domain.Message, error) {
		mu.Lock()
		active++
		if active > 1 {
			overlap = true
		}
		mu.Unlock()

		mu.Lock()
		active--
		mu.Unlock()
		return domain.AssistantMessage("ok"), nil
	})

	eng, err := agentgraph.NewAgent(model, nil)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Chat(ctx, "shared", "hello")
			assert.NoError(t, err, "serialized runs never hit stale checkpoints")
		}()
	}
	wg.Wait()

	assert.False(t, overlap)
	cp, err := eng.Thread(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, 8, cp.Step)
	assert.Equal(t, 16, cp.State.Len())
}

func TestEngine_CustomGraph(t *testing.T) {
	echo := func(_ context.Context, s *domain.State) ([]domain.Message, error) {
		last, _ := s.Last()
		return []domain.Message{domain.AssistantMessage("echo: " + last.Content)}, nil
	}
	g, err := graph.New().
		AddNode("echo", echo).
		AddConditionalEdge("echo", func(*domain.State) graph.Route { return graph.Stop() }).
		SetEntry("echo").
		Compile()
	require.NoError(t, err)

	eng, err := agentgraph.New(g, agentgraph.WithMaxSteps(3))
	require.NoError(t, err)

	state, err := eng.Chat(context.Background(), "t1", "ping")
	require.NoError(t, err)
	last, _ := state.Last()
	assert.Equal(t, "echo: ping", last.Content)
}

func TestEngine_RequiresCollaborators(t *testing.T) {
	_, err := agentgraph.New(nil)
	assert.Error(t, err)

	_, err = agentgraph.NewAgent(nil, nil)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, agentgraph.Version)
}
