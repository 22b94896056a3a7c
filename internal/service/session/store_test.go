package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	sessionModel "github.com/zhouzirui/podtalk/backend/internal/model/session"
)

func TestStoreDispatchNotifiesOnChange(t *testing.T) {
	var seen []sessionModel.State
	s := NewStore(func(st sessionModel.State) { seen = append(seen, st) })

	s.Dispatch(sessionModel.SetConnecting{Connecting: true})
	s.Dispatch(sessionModel.SetConnecting{Connecting: true})
	s.Dispatch(sessionModel.AddMessage{Message: sessionModel.Message{ID: "1", Role: "user", Text: "hi"}})

	assert.Len(t, seen, 2)
	assert.True(t, s.State().IsConnecting)
	assert.Len(t, s.State().Messages, 1)
}

func TestStoreSummary(t *testing.T) {
	s := NewStore(nil)
	assert.Empty(t, s.Summary())
	s.SetSummary("short")
	assert.Equal(t, "short", s.Summary())
}
