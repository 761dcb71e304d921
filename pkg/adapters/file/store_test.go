package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/agentgraph/pkg/adapters/file"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure Store implements CheckpointStore
var _ ports.CheckpointStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunCheckpointStoreContract(t, store)
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	cp := &domain.Checkpoint{ThreadID: "t1", State: domain.NewState("t1", domain.UserMessage("hi")), Step: 1}
	require.NoError(t, store.Put(ctx, cp))
	cp.Step = 2
	require.NoError(t, store.Put(ctx, cp))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the checkpoint file should remain")
	assert.Equal(t, "t1.json", entries[0].Name())
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	store := file.New(filepath.Join(dir, "threads"))
	ctx := context.Background()

	err := store.Put(ctx, &domain.Checkpoint{ThreadID: "../escape", State: domain.NewState("x")})
	assert.Error(t, err)

	_, err = store.Get(ctx, "")
	assert.Error(t, err)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "missing"))
	threads, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestFileStore_ListKeepsThreadsNamedLikeTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	for _, id := range []string{"tmp-x", "tmp-1-2", ".hidden", "t1"} {
		require.NoError(t, store.Put(ctx, &domain.Checkpoint{ThreadID: id, State: domain.NewState(id, domain.UserMessage("hi")), Step: 1}))
	}
	// A write interrupted before its rename.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".t1-123.tmp"), []byte("{"), 0644))

	threads, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden", "t1", "tmp-1-2", "tmp-x"}, threads)

	cp, err := store.Get(ctx, "tmp-x")
	require.NoError(t, err)
	assert.Equal(t, 1, cp.Step)
}
