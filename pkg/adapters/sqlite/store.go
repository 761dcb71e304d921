// Package sqlite provides a CheckpointStore backed by a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/agentgraph/pkg/domain"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
	CREATE TABLE IF NOT EXISTS checkpoints (
		thread_id TEXT PRIMARY KEY,
		step INTEGER NOT NULL,
		status TEXT NOT NULL,
		data BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_updated ON checkpoints(updated_at);
`

// Store implements ports.CheckpointStore on a single SQLite table.
// Each checkpoint is one row, so every Put is an atomic upsert.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and prepares the schema.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Put upserts the checkpoint row for cp.ThreadID.
func (s *Store) Put(ctx context.Context, cp *domain.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	updated := cp.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, step, status, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			step = excluded.step,
			status = excluded.status,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		cp.ThreadID, cp.Step, string(cp.Status), data, updated.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Get loads the checkpoint for threadID.
func (s *Store) Get(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM checkpoints WHERE thread_id = ?", threadID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the thread. Deleting a missing thread is not an error.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE thread_id = ?", threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns every stored thread ID in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT thread_id FROM checkpoints ORDER BY thread_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var threads []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread id: %w", err)
		}
		threads = append(threads, id)
	}
	return threads, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
