package session

import "time"

// Message is one entry in the playground chat log.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// State is the playground view state. It only changes through Reduce.
type State struct {
	IsConnected  bool      `json:"isConnected"`
	IsConnecting bool      `json:"isConnecting"`
	IsChatOpen   bool      `json:"isChatOpen"`
	Messages     []Message `json:"messages"`
}

// Action is the closed set of state transitions.
type Action interface {
	apply(State) State
}

type SetConnected struct{ Connected bool }

type SetConnecting struct{ Connecting bool }

type SetChatOpen struct{ Open bool }

type AddMessage struct{ Message Message }

func (a SetConnected) apply(s State) State {
	s.IsConnected = a.Connected
	return s
}

func (a SetConnecting) apply(s State) State {
	s.IsConnecting = a.Connecting
	return s
}

func (a SetChatOpen) apply(s State) State {
	s.IsChatOpen = a.Open
	return s
}

func (a AddMessage) apply(s State) State {
	messages := make([]Message, len(s.Messages), len(s.Messages)+1)
	copy(messages, s.Messages)
	s.Messages = append(messages, a.Message)
	return s
}

// Reduce returns the state after applying action. The input is never
// modified; an unknown or nil action returns the state unchanged.
func Reduce(state State, action Action) State {
	if action == nil {
		return state
	}
	return action.apply(state)
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s State) Clone() State {
	out := s
	if s.Messages != nil {
		out.Messages = append([]Message(nil), s.Messages...)
	}
	return out
}
