package matchmaking

import (
	"context"
	"errors"
	"fmt"
)

// MatchCapacity is the number of player slots requested for every hosting session.
const MatchCapacity = 2

// SessionDescriptor identifies a provisioned hosting session and where to reach it.
type SessionDescriptor struct {
	SessionID string
	Host      string
	Port      int
}

// SessionProvisioner creates hosting sessions and binds players into their slots.
// The two calls are not atomic: a session can exist without any players bound to it,
// and its cleanup is the provisioner's responsibility.
type SessionProvisioner interface {
	CreateSession(ctx context.Context, capacity int) (*SessionDescriptor, error)
	// BindPlayers returns a join token per player ID.
	BindPlayers(ctx context.Context, sessionID string, playerIDs []string, scores map[string]int) (map[string]string, error)
}

var (
	ErrAlreadyStarted = errors.New("matchmaking already started")
	ErrCreateSession  = errors.New("create session failed")
	ErrBindPlayers    = errors.New("bind players failed")
	// ErrCandidateWithdrawn means a candidate left the queue while its match was being provisioned.
	ErrCandidateWithdrawn = errors.New("candidate withdrew during provisioning")
)

// Provisioning stages reported in ProvisioningError.
const (
	StageCreateSession = "create_session"
	StageBindPlayers   = "bind_players"
)

// ProvisioningError reports a failed handoff. SessionID is set when the session was
// created but the players could not be bound to it.
type ProvisioningError struct {
	Stage     string
	SessionID string
	Err       error
}

func (e *ProvisioningError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("provisioning %s (session %s): %v", e.Stage, e.SessionID, e.Err)
	}
	return fmt.Sprintf("provisioning %s: %v", e.Stage, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }
