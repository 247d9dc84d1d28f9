package matchmaking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of one matching loop iteration.
type Outcome int

const (
	OutcomeNoPair Outcome = iota
	OutcomeEvicted
	OutcomeCommitted
	OutcomeFailed
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoPair:
		return "no_pair"
	case OutcomeEvicted:
		return "evicted"
	case OutcomeCommitted:
		return "committed"
	case OutcomeFailed:
		return "failed"
	case OutcomeAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// Config holds the matching loop tunables.
type Config struct {
	PollInterval     time.Duration
	ProvisionTimeout time.Duration
	NotifyTimeout    time.Duration
	// RequeueOnFailure puts still-connected candidates back in the queue after a failed
	// provisioning attempt instead of waiting for them to request a match again.
	RequeueOnFailure bool
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.ProvisionTimeout <= 0 {
		c.ProvisionTimeout = 10 * time.Second
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 5 * time.Second
	}
	return c
}

type Option func(*MatchMaker)

func WithMetrics(metrics Metrics) Option {
	return func(m *MatchMaker) { m.metrics = metrics }
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(m *MatchMaker) { m.events = publisher }
}

// MatchMaker pairs queued players and hands every pair to the session provisioner.
// A single background loop makes all match-commit decisions.
type MatchMaker struct {
	queue       *Queue
	provisioner SessionProvisioner
	events      EventPublisher
	metrics     Metrics
	cfg         Config

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewMatchMaker(provisioner SessionProvisioner, cfg Config, opts ...Option) *MatchMaker {
	m := &MatchMaker{
		queue:       NewQueue(),
		provisioner: provisioner,
		events:      nopPublisher{},
		metrics:     nopMetrics{},
		cfg:         cfg.withDefaults(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.queue.onResize = m.metrics.QueueSize
	return m
}

// RequestMatch queues the player. It returns false when the player is already queued.
func (m *MatchMaker) RequestMatch(p Player) bool {
	added := m.queue.RequestMatch(p)
	if added {
		slog.Info("Player added to match queue", "playerID", p.ID())
	}
	return added
}

// Withdraw removes the player if this exact handle is still queued.
func (m *MatchMaker) Withdraw(p Player) {
	if m.queue.removeHandle(p) {
		slog.Info("Player withdrawn from match queue", "playerID", p.ID())
	}
}

func (m *MatchMaker) Remove(playerID string) {
	m.queue.Remove(playerID)
}

func (m *MatchMaker) QueueLen() int { return m.queue.Len() }

// StartMatchmaking runs the matching loop in a separate goroutine until ctx is cancelled
// or Stop is called. It can be called once. After Stop the loop exits right away.
func (m *MatchMaker) StartMatchmaking(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	if m.stopped {
		m.cancel()
	}
	go m.run(ctx)
	return nil
}

// Stop cancels the loop and waits for the current iteration to finish.
func (m *MatchMaker) Stop() {
	m.mu.Lock()
	m.stopped = true
	cancel, started := m.cancel, m.started
	m.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-m.done
}

func (m *MatchMaker) run(ctx context.Context) {
	defer close(m.done)

	slog.Info("Matchmaking loop started", "interval", m.cfg.PollInterval)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Matchmaking loop stopping.")
			return
		case <-ticker.C:
		}

		// An eviction restarts the cycle right away.
		for ctx.Err() == nil {
			outcome, err := m.step(ctx)
			if err != nil {
				slog.Error("Match attempt failed", "outcome", outcome.String(), "error", err)
			}
			if outcome != OutcomeEvicted {
				break
			}
		}
	}
}

// step runs a single matching iteration.
func (m *MatchMaker) step(ctx context.Context) (outcome Outcome, err error) {
	defer func() { m.metrics.IterationOutcome(outcome) }()

	p1, p2, ok := m.queue.SamplePair()
	if !ok {
		return OutcomeNoPair, nil
	}

	for _, p := range []Player{p1, p2} {
		if !p.IsConnected() {
			slog.Debug("Evicting disconnected player", "playerID", p.ID())
			m.queue.removeHandle(p)
			m.metrics.PlayerEvicted()
			return OutcomeEvicted, nil
		}
	}

	matchID := uuid.NewString()
	playerIDs := []string{p1.ID(), p2.ID()}
	slog.Info("Processing found match", "matchID", matchID, "players", playerIDs)

	session, tokens, err := m.provision(ctx, p1, p2)
	if err != nil && ctx.Err() != nil {
		// Shutdown interrupted the handoff; leave the candidates queued.
		slog.Warn("Match attempt abandoned on shutdown", "matchID", matchID, "error", err)
		if session != nil {
			m.publish(ctx, MatchEvent{
				Type:       EventMatchFailed,
				MatchID:    matchID,
				SessionID:  session.SessionID,
				PlayerIDs:  playerIDs,
				Reason:     err.Error(),
				OccurredAt: time.Now().UTC(),
			})
		}
		return OutcomeAbandoned, err
	}

	if err == nil && !m.queue.takePair(p1, p2) {
		err = m.withdrawn(session.SessionID, StageBindPlayers)
	}

	event := MatchEvent{
		Type:       EventMatchCommitted,
		MatchID:    matchID,
		PlayerIDs:  playerIDs,
		OccurredAt: time.Now().UTC(),
	}
	if session != nil {
		event.SessionID = session.SessionID
	}

	if err != nil {
		// Only players who were still waiting may go back; a withdrawn one stays out.
		var waiting []Player
		for _, p := range []Player{p1, p2} {
			if m.queue.removeHandle(p) {
				waiting = append(waiting, p)
			}
		}
		if m.cfg.RequeueOnFailure {
			m.requeue(waiting...)
		}
		event.Type = EventMatchFailed
		event.Reason = err.Error()
		m.publish(ctx, event)
		return OutcomeFailed, err
	}

	for _, p := range []Player{p1, p2} {
		m.notify(ctx, p, session, tokens[p.ID()])
	}
	m.publish(ctx, event)
	return OutcomeCommitted, nil
}

func (m *MatchMaker) publish(ctx context.Context, event MatchEvent) {
	if err := m.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn("Match event not published", "matchID", event.MatchID, "error", err)
	}
}

// provision creates a session for the pair and binds both players into it.
// The returned session is set whenever one was created, even on error.
func (m *MatchMaker) provision(ctx context.Context, p1, p2 Player) (*SessionDescriptor, map[string]string, error) {
	createCtx, cancel := context.WithTimeout(ctx, m.cfg.ProvisionTimeout)
	defer cancel()

	start := time.Now()
	session, err := m.provisioner.CreateSession(createCtx, MatchCapacity)
	m.metrics.ProvisioningElapsed(StageCreateSession, time.Since(start))
	if err != nil {
		m.metrics.ProvisioningFailed(StageCreateSession)
		return nil, nil, &ProvisioningError{
			Stage: StageCreateSession,
			Err:   fmt.Errorf("%w: %w", ErrCreateSession, err),
		}
	}
	slog.Info("Hosting session created", "sessionID", session.SessionID,
		"address", fmt.Sprintf("%s:%d", session.Host, session.Port))

	// Players who cancelled while the session was being created are not bound.
	if !m.queue.holdsPair(p1, p2) {
		return session, nil, m.withdrawn(session.SessionID, StageBindPlayers)
	}

	tokens, err := m.bind(ctx, session.SessionID, p1, p2)
	if err != nil {
		m.metrics.ProvisioningFailed(StageBindPlayers)
		return session, nil, &ProvisioningError{
			Stage:     StageBindPlayers,
			SessionID: session.SessionID,
			Err:       fmt.Errorf("%w: %w", ErrBindPlayers, err),
		}
	}
	return session, tokens, nil
}

func (m *MatchMaker) withdrawn(sessionID, stage string) error {
	m.metrics.ProvisioningFailed(stage)
	return &ProvisioningError{
		Stage:     stage,
		SessionID: sessionID,
		Err:       fmt.Errorf("%w: %w", ErrBindPlayers, ErrCandidateWithdrawn),
	}
}

func (m *MatchMaker) bind(ctx context.Context, sessionID string, p1, p2 Player) (map[string]string, error) {
	bindCtx, cancel := context.WithTimeout(ctx, m.cfg.ProvisionTimeout)
	defer cancel()

	playerIDs := []string{p1.ID(), p2.ID()}
	scores := map[string]int{
		p1.ID(): p1.Score(),
		p2.ID(): p2.Score(),
	}

	start := time.Now()
	tokens, err := m.provisioner.BindPlayers(bindCtx, sessionID, playerIDs, scores)
	m.metrics.ProvisioningElapsed(StageBindPlayers, time.Since(start))
	if err != nil {
		return nil, err
	}
	for _, id := range playerIDs {
		if tokens[id] == "" {
			return nil, fmt.Errorf("no join token for player %s", id)
		}
	}
	return tokens, nil
}

// notify delivers the match to one player. Failures are reported but never undo the match.
func (m *MatchMaker) notify(ctx context.Context, p Player, session *SessionDescriptor, joinToken string) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.NotifyTimeout)
	defer cancel()

	if err := p.NotifyMatch(notifyCtx, session.Host, session.Port, joinToken); err != nil {
		m.metrics.NotificationFailed()
		slog.Warn("Failed to send match notification", "playerID", p.ID(), "sessionID", session.SessionID, "error", err)
		return
	}
	slog.Info("Match notification sent", "playerID", p.ID(), "sessionID", session.SessionID)
}

func (m *MatchMaker) requeue(players ...Player) {
	for _, p := range players {
		if p.IsConnected() && m.queue.RequestMatch(p) {
			slog.Info("Player re-queued after failed match", "playerID", p.ID())
		}
	}
}
