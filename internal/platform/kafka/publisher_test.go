package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"fulfillmentservice/internal/platform/resilience"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type recordingProducer struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (p *recordingProducer) WriteMessage(ctx context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func TestPublisher_Publish(t *testing.T) {
	producer := &recordingProducer{}
	logger := zap.NewNop()
	pub := NewPublisher(producer, resilience.NewCircuitBreaker("kafka-test-ok", "test", logger), logger)

	event := map[string]string{"id": "ORDER_1"}
	if err := pub.Publish(context.Background(), "OrderPlaced", "ORDER_1", event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(producer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(producer.messages))
	}
	msg := producer.messages[0]
	if msg.Topic != "OrderPlaced" || string(msg.Key) != "ORDER_1" {
		t.Errorf("unexpected topic/key: %s/%s", msg.Topic, msg.Key)
	}

	var decoded map[string]string
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded["id"] != "ORDER_1" {
		t.Errorf("unexpected payload: %s", msg.Value)
	}
}

func TestPublisher_CircuitOpensAfterFailures(t *testing.T) {
	producer := &recordingProducer{err: errors.New("broker down")}
	logger := zap.NewNop()
	pub := NewPublisher(producer, resilience.NewCircuitBreaker("kafka-test-open", "test", logger), logger)

	for i := 0; i < 3; i++ {
		if err := pub.PublishRaw(context.Background(), "OrderPlaced", "k", []byte("{}")); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}

	err := pub.PublishRaw(context.Background(), "OrderPlaced", "k", []byte("{}"))
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected open circuit error, got %v", err)
	}
}

func TestPublisher_UnserializableEvent(t *testing.T) {
	producer := &recordingProducer{}
	logger := zap.NewNop()
	pub := NewPublisher(producer, resilience.NewCircuitBreaker("kafka-test-json", "test", logger), logger)

	if err := pub.Publish(context.Background(), "OrderPlaced", "k", make(chan int)); err == nil {
		t.Fatal("expected serialization error")
	}
	if len(producer.messages) != 0 {
		t.Errorf("expected nothing written, got %d messages", len(producer.messages))
	}
}
