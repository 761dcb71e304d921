package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// Store implements ports.CheckpointStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Checkpoint
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Checkpoint),
	}
}

// Put persists the checkpoint in memory.
func (s *Store) Put(ctx context.Context, cp *domain.Checkpoint) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := cp.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[cp.ThreadID] = copied
	return nil
}

// Get retrieves the checkpoint from memory.
func (s *Store) Get(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.data[threadID]
	if !ok {
		return nil, domain.ErrCheckpointNotFound
	}

	// Copy on read so callers can't mutate store state through the pointer
	return cp.Clone(), nil
}

// Delete removes the checkpoint.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, threadID)
	return nil
}

// List returns stored threads in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threads := make([]string, 0, len(s.data))
	for id := range s.data {
		threads = append(threads, id)
	}
	sort.Strings(threads)
	return threads, nil
}
