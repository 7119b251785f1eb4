// Package relevance decides whether asynchronous events deserve the
// user's attention, combining a deterministic rule cascade with a model
// fallback and an announcement rate limiter.
package relevance

import "time"

// Tier ranks how urgently an event should reach the user.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
	TierNoise    Tier = "noise"
)

func (t Tier) Valid() bool {
	switch t {
	case TierCritical, TierHigh, TierMedium, TierLow, TierNoise:
		return true
	}
	return false
}

// Event is an asynchronous observation from a monitor or connector.
type Event struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	Priority   int            `json:"priority"`
	ObservedAt time.Time      `json:"observed_at"`
}

// ScoredEvent is the engine's verdict on one event.
type ScoredEvent struct {
	Event          Event     `json:"event"`
	Tier           Tier      `json:"tier"`
	Score          float64   `json:"score"`
	ShouldAnnounce bool      `json:"should_announce"`
	Reasoning      string    `json:"reasoning"`
	Priority       int       `json:"priority"`
	ScoredAt       time.Time `json:"scored_at"`
}
