package domain

// StateDiff represents the messages appended between two snapshots of a thread.
// It is designed to be serialized to JSON for incremental updates on the client.
type StateDiff struct {
	// ThreadID is always present to identify the target.
	ThreadID string `json:"thread_id"`

	// From is the index of the first appended message.
	From int `json:"from"`

	// Appended contains the new messages, in order.
	Appended []Message `json:"appended"`
}

// Diff calculates the messages newState gained over oldState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// History is append-only, so a shorter or equal newState yields nil.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}
	return Since(newState, oldState.Len())
}

// Since returns the messages of state from index from onwards.
func Since(state *State, from int) *StateDiff {
	if state == nil {
		return nil
	}
	if from < 0 {
		from = 0
	}
	if from >= len(state.Messages) {
		return nil
	}

	diff := &StateDiff{
		ThreadID: state.ThreadID,
		From:     from,
		Appended: make([]Message, 0, len(state.Messages)-from),
	}
	for _, m := range state.Messages[from:] {
		diff.Appended = append(diff.Appended, m.Clone())
	}
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d == nil || len(d.Appended) == 0
}
