package docsearch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_Search(t *testing.T) {
	idx := NewIndex()
	idx.Add("wifi.md", "Connecting to WiFi\n\nCall WiFi.begin with the network name and password.\n\nThe LED blinks while connecting.")
	idx.Add("gpio.md", "GPIO pins\n\nUse pinMode to configure a pin as input or output. The LED is on pin 2.")

	assert.Equal(t, 5, idx.Len())

	results := idx.Search("wifi password", 10)
	require.NotEmpty(t, results)
	assert.Equal(t, "wifi.md", results[0].Source)
	assert.Contains(t, results[0].Passage, "password")

	results = idx.Search("led", 10)
	require.Len(t, results, 2)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	assert.Len(t, idx.Search("led", 1), 1)
	assert.Empty(t, idx.Search("bluetooth", 10))
	assert.Empty(t, idx.Search("the of", 10), "stopwords only")
}

func TestSplit_LongParagraph(t *testing.T) {
	long := strings.Repeat("word ", 400)
	chunks := split(long)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), MaxPassageSize)
	}
}

func TestIndex_LoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "guides"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guides", "sensor.md"), []byte("The DHT22 sensor reads humidity."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "notes.md"), []byte("humidity"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("humidity"), 0o644))

	idx := NewIndex()
	require.NoError(t, idx.LoadDir(dir))

	results := idx.Search("humidity", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "guides/sensor.md", results[0].Source)

	assert.Error(t, NewIndex().LoadDir(filepath.Join(dir, "missing")))
}

func TestTool(t *testing.T) {
	idx := NewIndex()
	idx.Add("a.md", "Relays switch mains power.")
	reg := registry.MustNew(Tool(idx))
	ctx := context.Background()

	out, err := reg.Execute(ctx, domain.ToolCall{ID: "1", Name: ToolName, Arguments: json.RawMessage(`{"query":"relays"}`)})
	require.NoError(t, err)
	var got Output
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, "a.md", got.Results[0].Source)

	out, err = reg.Execute(ctx, domain.ToolCall{ID: "2", Name: ToolName, Arguments: json.RawMessage(`{"query":"zigbee"}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"zigbee","count":0,"results":[]}`, out)

	_, err = reg.Execute(ctx, domain.ToolCall{ID: "3", Name: ToolName, Arguments: json.RawMessage(`{"limit":2}`)})
	assert.ErrorIs(t, err, domain.ErrMalformedArguments)

	_, err = reg.Execute(ctx, domain.ToolCall{ID: "4", Name: ToolName, Arguments: json.RawMessage(`{"query":"x","limit":99}`)})
	assert.ErrorIs(t, err, domain.ErrMalformedArguments)
}
