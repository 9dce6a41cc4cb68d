package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"fulfillmentservice/internal/platform/observability"
	"fulfillmentservice/internal/platform/resilience"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher serializes events to JSON and writes them through a circuit
// breaker so a dead broker fails fast instead of stalling every handler.
type Publisher struct {
	producer Producer
	breaker  *resilience.CircuitBreaker
	logger   observability.Logger
}

// NewPublisher creates a Publisher over producer.
func NewPublisher(producer Producer, breaker *resilience.CircuitBreaker, logger observability.Logger) *Publisher {
	return &Publisher{producer: producer, breaker: breaker, logger: logger}
}

// Publish marshals event and sends it to topic keyed by key.
func (p *Publisher) Publish(ctx context.Context, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("❌ Failed to serialize event",
			zap.Error(err),
			zap.String("topic", topic),
			zap.String("key", key),
		)
		return fmt.Errorf("serialize %s event: %w", topic, err)
	}
	return p.PublishRaw(ctx, topic, key, payload)
}

// PublishRaw sends an already encoded payload.
func (p *Publisher) PublishRaw(ctx context.Context, topic, key string, payload []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.producer.WriteMessage(ctx, msg)
	})
	if err != nil {
		p.logger.Error("❌ Failed to publish event",
			zap.Error(err),
			zap.String("topic", topic),
			zap.String("key", key),
		)
		return fmt.Errorf("publish %s: %w", topic, resilience.FormatError(p.breaker.Name(), err))
	}

	p.logger.Info("📤 Sent event", zap.String("topic", topic), zap.String("key", key))
	return nil
}
