package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/podtalk/backend/internal/clock"
	sessionModel "github.com/zhouzirui/podtalk/backend/internal/model/session"
)

type timeoutLog struct {
	mu    sync.Mutex
	kinds []sessionModel.NoticeKind
}

func (l *timeoutLog) record(kind sessionModel.NoticeKind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kinds = append(l.kinds, kind)
}

func (l *timeoutLog) all() []sessionModel.NoticeKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]sessionModel.NoticeKind(nil), l.kinds...)
}

func newTestSupervisor() (*Supervisor, *clock.Fake, *timeoutLog) {
	clk := clock.NewFake(time.Unix(1000, 0))
	log := &timeoutLog{}
	return NewSupervisor(clk, 5*time.Second, 5*time.Second, log.record, nil), clk, log
}

func TestSupervisorAgentJoinsBeforeDeadline(t *testing.T) {
	for _, joinAfter := range []time.Duration{0, time.Second, 4999 * time.Millisecond} {
		t.Run(joinAfter.String(), func(t *testing.T) {
			sup, clk, log := newTestSupervisor()
			sup.ConnectionChanged(true)
			assert.Equal(t, AwaitingAgent, sup.State())

			clk.Advance(joinAfter)
			sup.AgentChanged(true)
			assert.Equal(t, AgentPresent, sup.State())
			assert.False(t, sup.TimerPending())

			clk.Advance(time.Minute)
			assert.Empty(t, log.all())
		})
	}
}

func TestSupervisorNoAgentTimesOutOnce(t *testing.T) {
	sup, clk, log := newTestSupervisor()
	sup.ConnectionChanged(true)

	clk.Advance(4999 * time.Millisecond)
	assert.Empty(t, log.all())

	clk.Advance(2 * time.Millisecond)
	assert.Equal(t, []sessionModel.NoticeKind{sessionModel.NoticeChatUnavailable}, log.all())
	assert.Equal(t, Idle, sup.State())

	// a late agent and more time change nothing
	sup.AgentChanged(true)
	clk.Advance(time.Minute)
	assert.Len(t, log.all(), 1)
}

func TestSupervisorAgentLeavesAndReturns(t *testing.T) {
	sup, clk, log := newTestSupervisor()
	sup.ConnectionChanged(true)
	sup.AgentChanged(true)

	sup.AgentChanged(false)
	assert.Equal(t, AgentLost, sup.State())
	clk.Advance(3 * time.Second)
	sup.AgentChanged(true)
	assert.Equal(t, AgentPresent, sup.State())

	clk.Advance(time.Minute)
	assert.Empty(t, log.all())
}

func TestSupervisorAgentLostTimesOut(t *testing.T) {
	sup, clk, log := newTestSupervisor()
	sup.ConnectionChanged(true)
	sup.AgentChanged(true)
	sup.AgentChanged(false)

	clk.Advance(5001 * time.Millisecond)
	require.Equal(t, []sessionModel.NoticeKind{sessionModel.NoticeAgentDisconnected}, log.all())

	clk.Advance(time.Minute)
	assert.Len(t, log.all(), 1)
}

func TestSupervisorDisconnectCancelsTimer(t *testing.T) {
	sup, clk, log := newTestSupervisor()
	sup.ConnectionChanged(true)
	require.True(t, sup.TimerPending())

	sup.ConnectionChanged(false)
	assert.False(t, sup.TimerPending())
	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, Idle, sup.State())

	clk.Advance(time.Minute)
	assert.Empty(t, log.all())
}

func TestSupervisorAgentAlreadyInRoom(t *testing.T) {
	sup, clk, log := newTestSupervisor()
	sup.AgentChanged(true)
	sup.ConnectionChanged(true)
	assert.Equal(t, AgentPresent, sup.State())

	clk.Advance(time.Minute)
	assert.Empty(t, log.all())
}

func TestSupervisorReconnectAfterTimeout(t *testing.T) {
	sup, clk, log := newTestSupervisor()
	sup.ConnectionChanged(true)
	clk.Advance(6 * time.Second)
	require.Len(t, log.all(), 1)

	sup.ConnectionChanged(true)
	assert.Equal(t, AwaitingAgent, sup.State())
	clk.Advance(6 * time.Second)
	assert.Len(t, log.all(), 2)
}

func TestSupervisorClose(t *testing.T) {
	sup, clk, log := newTestSupervisor()
	sup.ConnectionChanged(true)
	sup.Close()

	clk.Advance(time.Minute)
	assert.Empty(t, log.all())

	sup.ConnectionChanged(false)
	sup.ConnectionChanged(true)
	assert.Equal(t, 0, clk.Pending())
}

func TestSupervisorStateNames(t *testing.T) {
	text, err := AgentLost.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "agent_lost", string(text))
	assert.Equal(t, "awaiting_agent", AwaitingAgent.String())
}
