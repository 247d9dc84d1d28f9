package orchestration

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service defines the session provisioning business logic.
type Service interface {
	CreateSession(ctx context.Context, capacity int) (*Session, error)
	BindPlayers(ctx context.Context, sessionID string, playerIDs []string, scores map[string]int) (map[string]string, error)
	Release(ctx context.Context, sessionID string) error
	Confirm(ctx context.Context, sessionID string) error
	ActiveSessions(ctx context.Context) (int64, error)
}

// Config describes the fleet sessions are placed on.
type Config struct {
	FleetID string
	Host    string
	PortMin int
	PortMax int
	// UnboundTTL is how long a session waits for players before it expires.
	UnboundTTL  time.Duration
	MaxLifetime time.Duration
}

type service struct {
	store Store
	cfg   Config
	now   func() time.Time
}

func NewService(store Store, cfg Config) Service {
	if cfg.PortMax < cfg.PortMin {
		cfg.PortMax = cfg.PortMin
	}
	if cfg.UnboundTTL <= 0 {
		cfg.UnboundTTL = time.Minute
	}
	if cfg.MaxLifetime <= 0 {
		cfg.MaxLifetime = 2 * time.Hour
	}
	return &service{store: store, cfg: cfg, now: time.Now}
}

// CreateSession places a new session on the fleet. Unbound sessions expire on their own.
func (s *service) CreateSession(ctx context.Context, capacity int) (*Session, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	seq, err := s.store.NextPortSeq(ctx)
	if err != nil {
		slog.Error("Failed to allocate session port", "error", err)
		return nil, err
	}
	span := int64(s.cfg.PortMax - s.cfg.PortMin + 1)
	port := s.cfg.PortMin + int((seq-1)%span)

	session := &Session{
		ID:        uuid.NewString(),
		FleetID:   s.cfg.FleetID,
		Host:      s.cfg.Host,
		Port:      port,
		Capacity:  capacity,
		Status:    StatusPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, session, s.cfg.UnboundTTL); err != nil {
		slog.Error("Failed to store session", "sessionID", session.ID, "error", err)
		return nil, err
	}

	slog.Info("Session created", "sessionID", session.ID, "host", session.Host, "port", session.Port, "capacity", capacity)
	return session, nil
}

// BindPlayers reserves a slot per player and returns their join tokens.
// A session can be bound once.
func (s *service) BindPlayers(ctx context.Context, sessionID string, playerIDs []string, scores map[string]int) (map[string]string, error) {
	if !uniqueNonEmpty(playerIDs) {
		return nil, ErrInvalidPlayers
	}

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(playerIDs) > session.Capacity {
		return nil, ErrTooManyPlayers
	}

	claimed, err := s.store.ClaimBind(ctx, sessionID, s.cfg.MaxLifetime)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrSessionAlreadyBound
	}

	tokens := make(map[string]string, len(playerIDs))
	slots := make([]PlayerSlot, 0, len(playerIDs))
	for _, id := range playerIDs {
		token := uuid.NewString()
		tokens[id] = token
		slots = append(slots, PlayerSlot{PlayerID: id, JoinToken: token, Score: scores[id]})
	}
	if err := s.store.SaveSlots(ctx, sessionID, slots, s.cfg.MaxLifetime); err != nil {
		slog.Error("Failed to store player slots", "sessionID", sessionID, "error", err)
		return nil, err
	}

	session.Status = StatusBound
	if err := s.store.Save(ctx, session, s.cfg.MaxLifetime); err != nil {
		return nil, err
	}

	slog.Info("Players bound to session", "sessionID", sessionID, "players", playerIDs)
	return tokens, nil
}

// Release tears a session down. Releasing an unknown session is not an error.
func (s *service) Release(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		slog.Error("Failed to release session", "sessionID", sessionID, "error", err)
		return err
	}
	slog.Info("Session released", "sessionID", sessionID)
	return nil
}

// Confirm marks a bound session as running.
func (s *service) Confirm(ctx context.Context, sessionID string) error {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	remaining := s.cfg.MaxLifetime - s.now().Sub(session.CreatedAt)
	if remaining <= 0 {
		return ErrSessionNotFound
	}
	session.Status = StatusRunning
	return s.store.Save(ctx, session, remaining)
}

func (s *service) ActiveSessions(ctx context.Context) (int64, error) {
	return s.store.CountActive(ctx, s.now())
}

func uniqueNonEmpty(ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return false
		}
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}
