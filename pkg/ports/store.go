package ports

import (
	"context"

	"github.com/aretw0/agentgraph/pkg/domain"
)

// CheckpointStore defines the interface for persisting thread checkpoints.
// This allows for durable execution, enabling "Stop & Resume" conversations.
//
// Put and Get for the same thread must be atomic with respect to each other:
// a reader never observes a half-written checkpoint.
type CheckpointStore interface {
	// Put stores (or overwrites) the checkpoint for cp.ThreadID.
	Put(ctx context.Context, cp *domain.Checkpoint) error

	// Get retrieves the latest checkpoint for a thread.
	// Returns domain.ErrCheckpointNotFound if the thread does not exist.
	Get(ctx context.Context, threadID string) (*domain.Checkpoint, error)

	// Delete removes the checkpoint for a thread. Deleting a missing thread is not an error.
	Delete(ctx context.Context, threadID string) error

	// List returns the ids of all stored threads.
	List(ctx context.Context) ([]string, error)
}
