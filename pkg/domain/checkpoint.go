package domain

import "time"

// ExecutionStatus tells whether a checkpointed run still has work to do.
type ExecutionStatus string

const (
	StatusActive     ExecutionStatus = "active"     // More steps follow (or the run was aborted mid-loop)
	StatusTerminated ExecutionStatus = "terminated" // The router stopped the run
)

// Checkpoint is the persisted snapshot of a thread after a completed step.
// Stores own checkpoints; the engine only ever writes a newer one.
type Checkpoint struct {
	ThreadID string `json:"thread_id"`
	State    *State `json:"state"`

	// Step counts the steps completed on this thread since it was created.
	// It grows monotonically and is used to reject stale writes.
	Step int `json:"step"`

	// NextNode is where the executor resumes.
	NextNode string `json:"next_node"`

	Status    ExecutionStatus `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`

	// Payload carries an opaque encoding of State written by store middleware
	// (e.g. encryption). When set, State is nil in the persisted form.
	Payload []byte `json:"payload,omitempty"`
}

// Clone creates a deep copy of the checkpoint.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	out := *c
	out.State = c.State.Clone()
	if c.Payload != nil {
		out.Payload = append([]byte(nil), c.Payload...)
	}
	return &out
}
