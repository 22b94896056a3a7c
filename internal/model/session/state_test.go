package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReduce(t *testing.T) {
	s := State{}

	s = Reduce(s, SetConnecting{Connecting: true})
	assert.True(t, s.IsConnecting)

	s = Reduce(s, SetConnected{Connected: true})
	assert.True(t, s.IsConnected)

	s = Reduce(s, SetChatOpen{Open: true})
	assert.True(t, s.IsChatOpen)

	s = Reduce(s, AddMessage{Message: Message{ID: "1", Text: "hi"}})
	s = Reduce(s, AddMessage{Message: Message{ID: "2", Text: "there"}})
	assert.Len(t, s.Messages, 2)
	assert.Equal(t, "there", s.Messages[1].Text)

	assert.Equal(t, s, Reduce(s, nil))
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	base := State{Messages: make([]Message, 1, 4)}
	base.Messages[0] = Message{ID: "a"}

	next := Reduce(base, AddMessage{Message: Message{ID: "b"}})
	other := Reduce(base, AddMessage{Message: Message{ID: "c"}})

	assert.Len(t, base.Messages, 1)
	assert.Equal(t, "b", next.Messages[1].ID)
	assert.Equal(t, "c", other.Messages[1].ID)

	flipped := Reduce(base, SetChatOpen{Open: true})
	assert.False(t, base.IsChatOpen)
	assert.True(t, flipped.IsChatOpen)
}

func TestStateCloneIsIndependent(t *testing.T) {
	s := State{Messages: []Message{{ID: "a"}}}
	c := s.Clone()
	c.Messages[0].ID = "z"
	assert.Equal(t, "a", s.Messages[0].ID)
}
