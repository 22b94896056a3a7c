package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/zhouzirui/podtalk/backend/internal/clock"
	sessionModel "github.com/zhouzirui/podtalk/backend/internal/model/session"
)

// SupervisorState is the liveness state of the agent in a live room.
type SupervisorState int

const (
	Idle SupervisorState = iota
	AwaitingAgent
	AgentPresent
	AgentLost
)

func (s SupervisorState) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingAgent:
		return "awaiting_agent"
	case AgentPresent:
		return "agent_present"
	case AgentLost:
		return "agent_lost"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s SupervisorState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *SupervisorState) UnmarshalText(text []byte) error {
	for _, st := range []SupervisorState{Idle, AwaitingAgent, AgentPresent, AgentLost} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown supervisor state %q", text)
}

// DefaultAgentTimeout bounds both the initial join and a mid-session rejoin.
const DefaultAgentTimeout = 5 * time.Second

// Supervisor forces a disconnect when the agent never joins or leaves
// without coming back. Each armed timer causes at most one timeout.
type Supervisor struct {
	mu            sync.Mutex
	clock         clock.Clock
	joinTimeout   time.Duration
	rejoinTimeout time.Duration
	state         SupervisorState
	connected     bool
	agentPresent  bool
	timer         clock.Timer
	epoch         uint64
	closed        bool
	onTimeout     func(sessionModel.NoticeKind)
	onState       func(SupervisorState)
}

// NewSupervisor builds an idle supervisor. onTimeout runs on the timer
// goroutine without the supervisor lock held.
func NewSupervisor(clk clock.Clock, joinTimeout, rejoinTimeout time.Duration, onTimeout func(sessionModel.NoticeKind), onState func(SupervisorState)) *Supervisor {
	if clk == nil {
		clk = clock.Real{}
	}
	if joinTimeout <= 0 {
		joinTimeout = DefaultAgentTimeout
	}
	if rejoinTimeout <= 0 {
		rejoinTimeout = DefaultAgentTimeout
	}
	if onTimeout == nil {
		onTimeout = func(sessionModel.NoticeKind) {}
	}
	return &Supervisor{
		clock:         clk,
		joinTimeout:   joinTimeout,
		rejoinTimeout: rejoinTimeout,
		onTimeout:     onTimeout,
		onState:       onState,
	}
}

// State returns the current state.
func (s *Supervisor) State() SupervisorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TimerPending reports whether a timeout is armed.
func (s *Supervisor) TimerPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// ConnectionChanged reports the room connection going live or down.
func (s *Supervisor) ConnectionChanged(connected bool) {
	s.mu.Lock()
	if s.closed || s.connected == connected {
		s.mu.Unlock()
		return
	}
	s.connected = connected

	if !connected {
		s.cancelTimerLocked()
		s.agentPresent = false
		s.setStateLocked(Idle)
	} else if s.agentPresent {
		s.setStateLocked(AgentPresent)
	} else {
		s.setStateLocked(AwaitingAgent)
		s.armLocked(s.joinTimeout, sessionModel.NoticeChatUnavailable)
	}
	s.notifyUnlock()
}

// AgentChanged reports the agent participant appearing or disappearing.
func (s *Supervisor) AgentChanged(present bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.agentPresent = present
	if !s.connected {
		s.mu.Unlock()
		return
	}

	switch {
	case s.state == AwaitingAgent && present:
		s.cancelTimerLocked()
		s.setStateLocked(AgentPresent)
	case s.state == AgentPresent && !present:
		s.setStateLocked(AgentLost)
		s.armLocked(s.rejoinTimeout, sessionModel.NoticeAgentDisconnected)
	case s.state == AgentLost && present:
		s.cancelTimerLocked()
		s.setStateLocked(AgentPresent)
	}
	s.notifyUnlock()
}

// Close cancels any pending timer; later inputs are ignored.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelTimerLocked()
}

func (s *Supervisor) armLocked(d time.Duration, kind sessionModel.NoticeKind) {
	s.cancelTimerLocked()
	epoch := s.epoch
	s.timer = s.clock.AfterFunc(d, func() { s.fire(epoch, kind) })
}

func (s *Supervisor) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.epoch++
}

// fire ignores timers that were cancelled after they started running.
func (s *Supervisor) fire(epoch uint64, kind sessionModel.NoticeKind) {
	s.mu.Lock()
	if s.closed || epoch != s.epoch || s.timer == nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.epoch++
	s.connected = false
	s.agentPresent = false
	s.setStateLocked(Idle)
	onState, state := s.onState, s.state
	s.mu.Unlock()

	if onState != nil {
		onState(state)
	}
	s.onTimeout(kind)
}

func (s *Supervisor) setStateLocked(state SupervisorState) {
	s.state = state
}

// notifyUnlock releases the lock and reports the state.
func (s *Supervisor) notifyUnlock() {
	onState, state := s.onState, s.state
	s.mu.Unlock()
	if onState != nil {
		onState(state)
	}
}
