package orchestration

import "time"

// Event types consumed from the match outcome topic.
const (
	EventMatchCommitted = "match_committed"
	EventMatchFailed    = "match_failed"
)

// MatchOutcomeEvent is the data structure for incoming events.
type MatchOutcomeEvent struct {
	Type       string    `json:"type"`
	MatchID    string    `json:"matchID"`
	SessionID  string    `json:"sessionID,omitempty"` // The session created for the match, if any.
	PlayerIDs  []string  `json:"playerIDs"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
