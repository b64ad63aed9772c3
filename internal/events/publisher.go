// Package events optionally publishes job/chunk lifecycle events to a Kafka
// topic for downstream observability pipelines outside this process. It is
// a no-op when no broker list is configured.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventType names a lifecycle transition.
type EventType string

const (
	JobStarted      EventType = "job.started"
	JobCompleted    EventType = "job.completed"
	JobFailed       EventType = "job.failed"
	ChunkCompleted  EventType = "chunk.completed"
	ChunkFailed     EventType = "chunk.failed"
)

// Event is the payload published for every lifecycle transition.
type Event struct {
	Type      EventType `json:"type"`
	JobID     string    `json:"jobId"`
	ChunkID   *int      `json:"chunkId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits Events to a Kafka topic. A nil *Publisher (or one built
// with no brokers) makes Publish a no-op, so callers never need to branch on
// whether the event bus is configured.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// New returns a Publisher for brokers/topic, or nil if brokers is empty.
func New(brokers []string, topic string, logger *zap.Logger) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
		logger: logger,
	}
}

// Publish emits an event. Failures are logged as warnings and never
// propagate: the event bus is an observability enrichment, not part of the
// engine's correctness contract.
func (p *Publisher) Publish(ctx context.Context, evt Event) {
	if p == nil {
		return
	}
	body, err := json.Marshal(evt)
	if err != nil {
		p.logger.Warn("events: marshal event failed", zap.Error(err))
		return
	}
	msg := kafka.Message{Key: []byte(evt.JobID), Value: body}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("events: publish failed", zap.Error(err))
	}
}

// Close flushes and closes the underlying writer. Safe to call on a nil
// Publisher.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
