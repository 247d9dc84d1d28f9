package matchmaking

import "context"

// Player is a connected player as seen by the matchmaker. The transport layer owns the
// underlying connection; the matchmaker only holds a reference and must re-check
// IsConnected before every use.
type Player interface {
	// ID returns the player's unique name. It must not change while the player is queued.
	ID() string
	// IsConnected reports whether the transport connection is currently alive.
	IsConnected() bool
	// Score returns the player's rating. It is passed to the backend as player data and
	// never influences pairing order.
	Score() int
	// NotifyMatch delivers the hosting session endpoint and the player's own join token.
	NotifyMatch(ctx context.Context, host string, port int, joinToken string) error
}
