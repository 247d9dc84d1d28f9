package orchestration

import (
	"errors"
	"time"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionAlreadyBound = errors.New("session already has players bound")
	ErrInvalidCapacity     = errors.New("capacity must be at least 1")
	ErrInvalidPlayers      = errors.New("player list must be non-empty and unique")
	ErrTooManyPlayers      = errors.New("more players than session capacity")
)

// Session statuses.
const (
	StatusPending = "pending" // created, no players bound yet
	StatusBound   = "bound"
	StatusRunning = "running" // the matchmaker confirmed the match
)

// Session is a hosting session on the fleet.
type Session struct {
	ID        string    `json:"id"`
	FleetID   string    `json:"fleetID"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Capacity  int       `json:"capacity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// PlayerSlot binds one player into a session.
type PlayerSlot struct {
	PlayerID  string `json:"playerID"`
	JoinToken string `json:"joinToken"`
	Score     int    `json:"score"`
}
