package matchmaking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types published on the match outcome topic.
const (
	EventMatchCommitted = "match_committed"
	EventMatchFailed    = "match_failed"
)

// MatchEvent is the payload published for every provisioning attempt.
type MatchEvent struct {
	Type       string    `json:"type"`
	MatchID    string    `json:"matchID"`
	SessionID  string    `json:"sessionID,omitempty"` // empty when no session was created
	PlayerIDs  []string  `json:"playerIDs"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventPublisher announces match outcomes to the rest of the backend.
type EventPublisher interface {
	Publish(ctx context.Context, event MatchEvent) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher writes match events to a Kafka topic, keyed by match ID.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event MatchEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.MatchID),
		Value: eventBytes,
	})
	if err != nil {
		slog.Error("Failed to publish match event", "type", event.Type, "matchID", event.MatchID, "error", err)
		return err
	}
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, MatchEvent) error { return nil }
