// Package kafka publishes facts to a Kafka topic for downstream consumers
// (audit pipelines, UI backends). Delivery is fire-and-forget from the
// core's point of view: the engine never waits for acknowledgement.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"custodex/internal/event"
)

// Producer writes JSON-encoded facts to one topic, keyed by fact kind so
// consumers can partition by type.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer creates a fact producer for the given brokers and topic.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        true, // never block the exchange hotpath
			BatchTimeout: 10 * time.Millisecond,
		},
		logger: slog.Default().With("module", "kafka_producer"),
	}
}

// Publish implements event.Sink.
func (p *Producer) Publish(fact event.Fact) {
	value, err := json.Marshal(fact)
	if err != nil {
		p.logger.Error("Failed to marshal fact", slog.Any("error", err))
		return
	}

	err = p.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(fact.GetKind()),
		Value: value,
	})
	if err != nil {
		// Facts are journaled in storage regardless; a publish failure is
		// an observer problem, not a ledger problem.
		p.logger.Error("Failed to publish fact",
			slog.String("kind", string(fact.GetKind())),
			slog.Uint64("seq", fact.GetSeq()),
			slog.Any("error", err))
	}
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
