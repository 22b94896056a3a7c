package room

import (
	"strings"
	"sync"
)

// AgentIdentityPrefix is the identity prefix used by agent workers that do
// not advertise the agent participant kind.
const AgentIdentityPrefix = "agent-"

// presence folds participant joins and leaves into agent present/absent
// transitions and forwards them to a Listener.
type presence struct {
	mu        sync.Mutex
	listener  Listener
	agents    map[string]struct{}
	connected bool
	closed    bool
}

func newPresence(listener Listener) *presence {
	return &presence{listener: listener, agents: make(map[string]struct{})}
}

func isAgent(identity string, agentKind bool) bool {
	return agentKind || strings.HasPrefix(identity, AgentIdentityPrefix)
}

func (p *presence) setConnected(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.connected == connected {
		return
	}
	p.connected = connected
	if !connected {
		p.agents = make(map[string]struct{})
	}
	p.listener.ConnectionChanged(connected)
}

func (p *presence) joined(identity string, agentKind bool) {
	if !isAgent(identity, agentKind) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	before := len(p.agents) > 0
	p.agents[identity] = struct{}{}
	if !before {
		p.listener.AgentChanged(true)
	}
}

func (p *presence) left(identity string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if _, ok := p.agents[identity]; !ok {
		return
	}
	delete(p.agents, identity)
	if len(p.agents) == 0 {
		p.listener.AgentChanged(false)
	}
}

// close silences the listener; events after Leave are dropped.
func (p *presence) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}
