// Package events publishes domain events to kafka. Consumers (search
// warmers, notification services) are outside this module; publishing is
// best-effort and must never fail a workflow operation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ezelectronics/backend/internal/logging"
)

const (
	TopicCartEvents    = "cart_events"
	TopicProductEvents = "product_events"
	TopicReviewEvents  = "review_events"
)

type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds a producer over the given brokers. A nil Producer is
// valid and drops every event, so callers can run without kafka.
func NewProducer(brokers []string) *Producer {
	if len(brokers) == 0 {
		return nil
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &Producer{writer: w}
}

func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event interface{}) error {
	if p == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

// Publish is the fire-and-forget form the workflows use: failures are
// logged and swallowed.
func (p *Producer) Publish(ctx context.Context, topic, key string, event map[string]interface{}) {
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "topic", topic, "error", err)
	}
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
