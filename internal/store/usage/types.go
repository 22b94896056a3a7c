// Package usage records how long each voice session stayed connected.
package usage

import (
	"context"
	"math"
	"time"
)

// Outcome values for Record.Outcome.
const (
	OutcomeCompleted         = "completed"
	OutcomeAgentTimeout      = "agent_timeout"
	OutcomeAgentDisconnected = "agent_disconnected"
	OutcomeJoinFailed        = "join_failed"
)

// Record describes one connected stretch of a viewer session.
type Record struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	VideoID     string    `json:"videoId"`
	Room        string    `json:"room"`
	Outcome     string    `json:"outcome"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
	MinutesUsed int       `json:"minutesUsed"`
}

// MinutesBetween rounds a connected span up to whole minutes.
func MinutesBetween(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(math.Ceil(end.Sub(start).Minutes()))
}

// Store persists usage records.
type Store interface {
	Save(ctx context.Context, record Record) error
	ListBySession(ctx context.Context, sessionID string) ([]Record, error)
	Close() error
}
