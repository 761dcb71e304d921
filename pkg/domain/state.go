package domain

// State is the conversation record of one thread.
// Messages are append-only: nodes return new messages and the engine
// appends them, nothing is ever reordered or removed.
type State struct {
	// ThreadID scopes the conversation and its checkpoint.
	ThreadID string `json:"thread_id"`

	// Messages holds the chronological record.
	Messages []Message `json:"messages"`
}

// NewState creates a state for the thread seeded with the given messages.
func NewState(threadID string, initial ...Message) *State {
	s := &State{ThreadID: threadID}
	for _, m := range initial {
		s.Messages = append(s.Messages, m.Clone())
	}
	return s
}

// Append returns a new State with msgs added at the end.
// The receiver is left untouched, so snapshots handed out earlier never change.
func (s *State) Append(msgs ...Message) *State {
	next := &State{
		ThreadID: s.ThreadID,
		Messages: make([]Message, 0, len(s.Messages)+len(msgs)),
	}
	next.Messages = append(next.Messages, s.Messages...)
	for _, m := range msgs {
		next.Messages = append(next.Messages, m.Clone())
	}
	return next
}

// Last returns the most recent message, if any.
func (s *State) Last() (Message, bool) {
	if s == nil || len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Len returns the number of messages in the record.
func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Messages)
}

// Clone creates a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{ThreadID: s.ThreadID}
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		for i, m := range s.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	return out
}
