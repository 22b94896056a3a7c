package session

import (
	"sync"

	sessionModel "github.com/zhouzirui/podtalk/backend/internal/model/session"
)

// Store owns one viewer's playground state and transcript summary. State
// only changes through Dispatch.
type Store struct {
	mu       sync.RWMutex
	state    sessionModel.State
	summary  string
	onChange func(sessionModel.State)
}

// NewStore returns an empty store. onChange, when set, receives a copy of
// the new state after every dispatch.
func NewStore(onChange func(sessionModel.State)) *Store {
	return &Store{state: sessionModel.State{Messages: []sessionModel.Message{}}, onChange: onChange}
}

// Dispatch applies action and returns the resulting state.
func (s *Store) Dispatch(action sessionModel.Action) sessionModel.State {
	s.mu.Lock()
	prev := s.state
	s.state = sessionModel.Reduce(prev, action)
	next := s.state.Clone()
	changed := !sameState(prev, s.state)
	s.mu.Unlock()

	if changed && s.onChange != nil {
		s.onChange(next)
	}
	return next
}

// State returns a copy of the current state.
func (s *Store) State() sessionModel.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// SetSummary stores the transcript summary used for agent instructions.
func (s *Store) SetSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
}

// Summary returns the stored summary, or "" when none is available yet.
func (s *Store) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

func sameState(a, b sessionModel.State) bool {
	return a.IsConnected == b.IsConnected &&
		a.IsConnecting == b.IsConnecting &&
		a.IsChatOpen == b.IsChatOpen &&
		len(a.Messages) == len(b.Messages)
}
