package kafka

import (
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// NewProducer returns an asynchronous writer. Messages with the same key land on the same
// partition, so all events of one match stay ordered.
func NewProducer(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // The matching loop must not wait on the broker.
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Error("Kafka async write failed", "messages", len(messages), "error", err)
			}
		},
	}
}
