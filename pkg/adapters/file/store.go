package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// Store implements ports.CheckpointStore using the local filesystem.
// It stores one JSON file per thread in a configured directory.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".agentgraph/threads".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".agentgraph", "threads")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(threadID string) (string, error) {
	if threadID == "" {
		return "", fmt.Errorf("threadID cannot be empty")
	}
	if threadID == "." || threadID == ".." || strings.ContainsAny(threadID, `/\`) {
		return "", fmt.Errorf("invalid threadID %q: must not contain path separators", threadID)
	}
	return filepath.Join(s.BasePath, threadID+".json"), nil
}

// Put persists the checkpoint to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Put(ctx context.Context, cp *domain.Checkpoint) error {
	destPath, err := s.path(cp.ThreadID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure thread directory: %w", err)
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Same directory as the destination, so the rename stays on one filesystem.
	// The .tmp extension keeps in-flight writes out of List.
	tmpFile, err := os.CreateTemp(s.BasePath, "."+cp.ThreadID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// os.Rename replaces the destination atomically (MoveFileEx with REPLACE_EXISTING on Windows),
	// so readers see either the old or the new checkpoint, never a missing one.
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to checkpoint: %w", err)
	}

	return nil
}

// Get retrieves the checkpoint from its JSON file.
func (s *Store) Get(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	filePath, err := s.path(threadID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	return &cp, nil
}

// Delete removes the checkpoint file.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	filePath, err := s.path(threadID)
	if err != nil {
		return err
	}

	err = os.Remove(filePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}

	return nil
}

// List returns all stored thread IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	var threads []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		threads = append(threads, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(threads)

	return threads, nil
}
