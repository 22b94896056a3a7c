// Package caption selects the caption line matching the playback position.
package caption

import (
	"fmt"
	"math"
	"sync"

	"github.com/zhouzirui/podtalk/backend/internal/model/transcript"
)

// EventKind distinguishes highlight changes.
type EventKind string

const (
	EventHighlight EventKind = "highlight"
	EventClear     EventKind = "clear"
)

// Event tells the client which line to highlight and scroll into view.
type Event struct {
	Kind     EventKind           `json:"kind"`
	Index    int                 `json:"index"`
	Segment  *transcript.Segment `json:"segment,omitempty"`
	Scroll   bool                `json:"scroll"`
	Position float64             `json:"position"`
}

// Renderer tracks the highlighted segment. Segments are not validated;
// overlapping input resolves to the earliest listed match.
type Renderer struct {
	mu       sync.Mutex
	segments []transcript.Segment
	active   int
}

func NewRenderer(segments []transcript.Segment) *Renderer {
	return &Renderer{segments: append([]transcript.Segment(nil), segments...), active: -1}
}

// SetSegments replaces the caption list and clears the highlight.
func (r *Renderer) SetSegments(segments []transcript.Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = append([]transcript.Segment(nil), segments...)
	r.active = -1
}

// Segments returns a copy of the caption list.
func (r *Renderer) Segments() []transcript.Segment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transcript.Segment(nil), r.segments...)
}

// Len returns the number of segments.
func (r *Renderer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.segments)
}

// Active returns the first segment whose [start, start+duration) holds t.
func (r *Renderer) Active(t float64) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return find(r.segments, t)
}

// Current returns the highlighted index, or -1.
func (r *Renderer) Current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Reconcile updates the highlight for position t. It reports an event only
// when the highlighted index changes.
func (r *Renderer) Reconcile(t float64) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := find(r.segments, t)
	if !ok {
		idx = -1
	}
	if idx == r.active {
		return Event{}, false
	}

	prev := r.active
	r.active = idx
	if idx < 0 {
		return Event{Kind: EventClear, Index: prev, Position: t}, true
	}
	seg := r.segments[idx]
	return Event{Kind: EventHighlight, Index: idx, Segment: &seg, Scroll: true, Position: t}, true
}

func find(segments []transcript.Segment, t float64) (int, bool) {
	for i, s := range segments {
		if s.Contains(t) {
			return i, true
		}
	}
	return -1, false
}

// FormatTimestamp renders seconds as m:ss.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
