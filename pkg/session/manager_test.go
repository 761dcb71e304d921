package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/agentgraph/pkg/adapters/memory"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
	"github.com/aretw0/agentgraph/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	ports.CheckpointStore
}

func (s *SlowStore) Get(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	return s.CheckpointStore.Get(ctx, threadID)
}

func checkpoint(id string, step int) *domain.Checkpoint {
	return &domain.Checkpoint{
		ThreadID: id,
		State:    domain.NewState(id, domain.UserMessage("hi")),
		Step:     step,
		NextNode: "agent",
		Status:   domain.StatusActive,
	}
}

func TestManager_RejectsStaleStep(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	require.NoError(t, mgr.Put(ctx, checkpoint("t1", 3)))

	err := mgr.Put(ctx, checkpoint("t1", 3))
	assert.ErrorIs(t, err, domain.ErrStaleCheckpoint)

	err = mgr.Put(ctx, checkpoint("t1", 2))
	assert.ErrorIs(t, err, domain.ErrStaleCheckpoint)
	assert.Equal(t, domain.KindCheckpointIO, domain.KindOf(err))

	require.NoError(t, mgr.Put(ctx, checkpoint("t1", 4)))

	cp, err := mgr.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 4, cp.Step)
}

func TestManager_ConcurrentWritersKeepHighestStep(t *testing.T) {
	mgr := session.NewManager(&SlowStore{memory.NewStore()})
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			err := mgr.Put(ctx, checkpoint(id, step))
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrStaleCheckpoint)
			}
		}(i)
	}
	wg.Wait()

	cp, err := mgr.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, cp.Step, "a lower step must never overwrite a higher one")
}

func TestManager_WithLockIsReentrantForSameThread(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- mgr.WithLock(ctx, "t1", func(ctx context.Context) error {
			if err := mgr.Put(ctx, checkpoint("t1", 1)); err != nil {
				return err
			}
			return mgr.Put(ctx, checkpoint("t1", 2))
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Put inside WithLock deadlocked")
	}
}

func TestManager_WithLockSerializesRuns(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.WithLock(ctx, "shared", func(context.Context) error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

type recordingLocker struct {
	mu       sync.Mutex
	locked   []string
	unlocked int
}

func (l *recordingLocker) Lock(_ context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	l.locked = append(l.locked, key)
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		l.unlocked++
		l.mu.Unlock()
		return nil
	}, nil
}

func TestManager_UsesDistributedLocker(t *testing.T) {
	locker := &recordingLocker{}
	mgr := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))
	ctx := context.Background()

	err := mgr.WithLock(ctx, "t1", func(ctx context.Context) error {
		// Nested writes reuse the held lock.
		return mgr.Put(ctx, checkpoint("t1", 1))
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"t1"}, locker.locked)
	assert.Equal(t, 1, locker.unlocked)
}

func TestManager_RejectsCheckpointWithoutState(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	err := mgr.Put(context.Background(), &domain.Checkpoint{ThreadID: "t1", Step: 1})
	assert.ErrorIs(t, err, domain.ErrCheckpointIO)
}
