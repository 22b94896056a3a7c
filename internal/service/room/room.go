// Package room joins a realtime media room as a hidden observer and reports
// connection and agent presence changes.
package room

import (
	"context"
	"errors"
)

// ErrEmptyTarget is returned when the room URL or name is missing.
var ErrEmptyTarget = errors.New("room url and name are required")

// Listener receives presence changes. Calls are serialized per room.
type Listener interface {
	ConnectionChanged(connected bool)
	AgentChanged(present bool)
}

// Target identifies the room to watch.
type Target struct {
	URL  string
	Room string
}

// Room is a joined room.
type Room interface {
	Leave()
}

// Joiner connects to rooms.
type Joiner interface {
	Join(ctx context.Context, target Target, listener Listener) (Room, error)
}
