package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// heldKey marks a context as already holding the lock for a thread.
type heldKey struct{ threadID string }

// Manager orchestrates checkpoint access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
//
// Manager satisfies ports.CheckpointStore, so it can be handed to the executor
// in place of the raw store.
type Manager struct {
	store ports.CheckpointStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

var _ ports.CheckpointStore = (*Manager)(nil)

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager over the given checkpoint store.
func NewManager(store ports.CheckpointStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(threadID) after unlocking.
func (m *Manager) acquire(threadID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[threadID]
	if !exists {
		entry = &lockEntry{}
		m.locks[threadID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[threadID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, threadID)
	}
}

func holds(ctx context.Context, threadID string) bool {
	held, _ := ctx.Value(heldKey{threadID}).(bool)
	return held
}

// Get loads the latest checkpoint of the thread.
// Reads are atomic at the store level and need no thread lock.
func (m *Manager) Get(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	return m.store.Get(ctx, threadID)
}

// Put writes cp unless the store already holds a checkpoint at the same or a
// later step, in which case domain.ErrStaleCheckpoint is returned.
func (m *Manager) Put(ctx context.Context, cp *domain.Checkpoint) error {
	if cp == nil || cp.State == nil {
		return fmt.Errorf("%w: checkpoint without state", domain.ErrCheckpointIO)
	}
	return m.withLock(ctx, cp.ThreadID, func(ctx context.Context) error {
		current, err := m.store.Get(ctx, cp.ThreadID)
		switch {
		case errors.Is(err, domain.ErrCheckpointNotFound):
		case err != nil:
			return fmt.Errorf("failed to check current checkpoint: %w", err)
		case cp.Step <= current.Step:
			return fmt.Errorf("%w: thread '%s' is at step %d, refusing step %d",
				domain.ErrStaleCheckpoint, cp.ThreadID, current.Step, cp.Step)
		}
		return m.store.Put(ctx, cp)
	})
}

// Delete removes the thread from the store.
func (m *Manager) Delete(ctx context.Context, threadID string) error {
	return m.withLock(ctx, threadID, func(ctx context.Context) error {
		return m.store.Delete(ctx, threadID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying checkpoint store.
func (m *Manager) Store() ports.CheckpointStore {
	return m.store
}

// WithLock executes fn while holding the lock for the thread.
// Put and Delete calls on the same thread made with the context passed to fn
// reuse the held lock instead of deadlocking.
func (m *Manager) WithLock(ctx context.Context, threadID string, fn func(context.Context) error) error {
	return m.withLock(ctx, threadID, fn)
}

func (m *Manager) withLock(ctx context.Context, threadID string, fn func(context.Context) error) error {
	if holds(ctx, threadID) {
		return fn(ctx)
	}

	entry := m.acquire(threadID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(threadID)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, threadID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The run context may already be canceled; release regardless.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"thread_id", threadID,
					"err", err,
				)
			}
		}()
	}

	return fn(context.WithValue(ctx, heldKey{threadID}, true))
}
