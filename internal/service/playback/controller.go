// Package playback tracks the player position reported by the browser and
// republishes it on a fixed cadence while the video plays.
package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/zhouzirui/podtalk/backend/internal/clock"
)

// PollInterval is the position publish cadence while playing.
const PollInterval = 100 * time.Millisecond

// State mirrors the player widget states.
type State string

const (
	StateUnstarted State = "unstarted"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateBuffering State = "buffering"
	StateEnded     State = "ended"
	StateCued      State = "cued"
)

// ParseState validates a state name sent by the client.
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case StateUnstarted, StatePlaying, StatePaused, StateBuffering, StateEnded, StateCued:
		return st, nil
	default:
		return "", fmt.Errorf("unknown player state %q", s)
	}
}

// Snapshot is the controller state as seen by clients.
type Snapshot struct {
	VideoID  string  `json:"videoId"`
	Ready    bool    `json:"ready"`
	State    State   `json:"state"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration,omitempty"`
}

// Controller interpolates position between client reports. It is safe for
// concurrent use.
type Controller struct {
	mu         sync.Mutex
	clock      clock.Clock
	videoID    string
	ready      bool
	state      State
	duration   float64
	basePos    float64
	baseAt     time.Time
	ticker     clock.Ticker
	stop       chan struct{}
	done       chan struct{}
	closed     bool
	onPosition func(float64)
}

// NewController returns a controller for videoID. onPosition is called from
// the ticker goroutine and after seeks; it must not call back into the
// controller's mutating methods.
func NewController(videoID string, clk clock.Clock, onPosition func(float64)) *Controller {
	if clk == nil {
		clk = clock.Real{}
	}
	if onPosition == nil {
		onPosition = func(float64) {}
	}
	return &Controller{clock: clk, videoID: videoID, state: StateUnstarted, onPosition: onPosition}
}

// VideoID returns the id the controller was built for.
func (c *Controller) VideoID() string { return c.videoID }

// Ready marks the player loaded. duration may be zero when unknown.
func (c *Controller) Ready(duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = true
	if duration > 0 {
		c.duration = duration
	}
}

// SetState applies a player state change. When at is non-nil it resyncs the
// position to the client's report.
func (c *Controller) SetState(state State, at *float64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	now := c.clock.Now()
	pos := c.positionLocked(now)
	if at != nil {
		pos = *at
	}
	c.basePos, c.baseAt = pos, now
	prev := c.state
	c.state = state

	if state == StatePlaying && prev != StatePlaying {
		c.startTickerLocked()
	} else if state != StatePlaying {
		c.stopTickerLocked()
	}
	c.mu.Unlock()

	if state != StatePlaying {
		c.onPosition(pos)
	}
}

// Seek jumps to t and publishes the new position immediately.
func (c *Controller) Seek(t float64) {
	if t < 0 {
		t = 0
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.basePos, c.baseAt = t, c.clock.Now()
	c.mu.Unlock()

	c.onPosition(t)
}

// Position returns the current interpolated position. It is frozen unless
// the player is playing.
func (c *Controller) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked(c.clock.Now())
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		VideoID:  c.videoID,
		Ready:    c.ready,
		State:    c.state,
		Position: c.positionLocked(c.clock.Now()),
		Duration: c.duration,
	}
}

// Playing reports whether the ticker is running.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker != nil
}

// Close stops the ticker and waits for its goroutine to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	done := c.stopTickerLocked()
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (c *Controller) positionLocked(now time.Time) float64 {
	pos := c.basePos
	if c.state == StatePlaying {
		pos += now.Sub(c.baseAt).Seconds()
	}
	if c.duration > 0 && pos > c.duration {
		pos = c.duration
	}
	return pos
}

func (c *Controller) startTickerLocked() {
	c.stopTickerLocked()

	ticker := c.clock.NewTicker(PollInterval)
	stop := make(chan struct{})
	done := make(chan struct{})
	c.ticker, c.stop, c.done = ticker, stop, done

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				select {
				case <-stop:
					return
				default:
				}
				c.onPosition(c.Position())
			}
		}
	}()
}

// stopTickerLocked returns the done channel of the stopped goroutine, if any.
func (c *Controller) stopTickerLocked() chan struct{} {
	if c.ticker == nil {
		return nil
	}
	c.ticker.Stop()
	close(c.stop)
	done := c.done
	c.ticker, c.stop, c.done = nil, nil, nil
	return done
}
