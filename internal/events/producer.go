// Package events publishes domain events to Kafka. Publishing is
// fire-and-forget from the caller's perspective: a broker outage must
// never fail a storefront request.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicUserEvents    = "user_events"
	TopicCartEvents    = "cart_events"
	TopicProductEvents = "product_events"
)

const publishTimeout = 5 * time.Second

type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type Producer struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewProducer returns nil when no brokers are configured; callers treat a
// nil producer as a no-op sink.
func NewProducer(brokers []string, log *slog.Logger) *Producer {
	if len(brokers) == 0 {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Producer{writer: writer, log: log}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, ev Event) {
	if p == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("event marshal failed", "topic", topic, "type", ev.Type, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: raw}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("event publish failed", "topic", topic, "type", ev.Type, "error", err)
	}
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
