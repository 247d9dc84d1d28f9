package orchestration

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Listener consumes match outcomes published by the matchmaker. Failed matches release
// the session they left behind; committed ones mark their session as running.
type Listener struct {
	consumer         messageReader
	svc              Service
	confirmedMatches *atomic.Int64
	retryDelay       time.Duration // pause after a failed read
}

func NewListener(consumer messageReader, svc Service) *Listener {
	return &Listener{
		consumer:         consumer,
		svc:              svc,
		confirmedMatches: &atomic.Int64{},
		retryDelay:       time.Second,
	}
}

// Run starts the Kafka consumer loop. It should be run in a goroutine.
func (l *Listener) Run(ctx context.Context) {
	slog.Info("Orchestration listener started")
	defer l.consumer.Close()

	for {
		msg, err := l.consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break // Context cancelled, graceful shutdown.
			}
			slog.Error("Error reading from Kafka", "error", err, "retryIn", l.retryDelay)
			select {
			case <-ctx.Done():
			case <-time.After(l.retryDelay):
			}
			continue
		}

		var event MatchOutcomeEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("Failed to unmarshal match outcome event", "error", err)
			continue
		}

		l.handle(ctx, event)
	}
	slog.Info("Orchestration listener stopped.")
}

func (l *Listener) handle(ctx context.Context, event MatchOutcomeEvent) {
	if event.SessionID == "" {
		// Session creation itself failed; nothing to clean up.
		return
	}

	switch event.Type {
	case EventMatchFailed:
		slog.Warn("Releasing session of failed match", "matchID", event.MatchID, "sessionID", event.SessionID, "reason", event.Reason)
		if err := l.svc.Release(ctx, event.SessionID); err != nil {
			slog.Error("Failed to release orphaned session", "sessionID", event.SessionID, "error", err)
		}
	case EventMatchCommitted:
		if err := l.svc.Confirm(ctx, event.SessionID); err != nil {
			slog.Error("Failed to confirm session", "sessionID", event.SessionID, "error", err)
			return
		}
		l.confirmedMatches.Add(1)
		slog.Info("Match confirmed", "matchID", event.MatchID, "sessionID", event.SessionID)
	default:
		slog.Warn("Unknown match outcome event", "type", event.Type, "matchID", event.MatchID)
	}
}

// ConfirmedMatches provides a thread-safe way to read the count.
func (l *Listener) ConfirmedMatches() int64 {
	return l.confirmedMatches.Load()
}
