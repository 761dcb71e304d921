package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/agentgraph/pkg/adapters/memory"
	"github.com/aretw0/agentgraph/pkg/domain"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		tid := fmt.Sprintf("thread-%d", i)
		_ = mgr.Put(ctx, &domain.Checkpoint{ThreadID: tid, State: domain.NewState(tid), Step: 1})
		_ = mgr.Delete(ctx, tid)
	}

	lockCount := len(mgr.locks)
	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}
