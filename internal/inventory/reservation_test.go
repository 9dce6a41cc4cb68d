package inventory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"fulfillmentservice/internal/config"
	"fulfillmentservice/internal/domain"
	"fulfillmentservice/internal/eventproc"
	"fulfillmentservice/internal/outbox"
	"fulfillmentservice/internal/platform/database/dbtest"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type memoryLocker struct {
	mu     sync.Mutex
	values map[string]string
}

func (l *memoryLocker) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.values[key]; ok {
		return false, nil
	}
	l.values[key] = value
	return true, nil
}

func (l *memoryLocker) Set(ctx context.Context, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values[key] = value
	return nil
}

func (l *memoryLocker) Delete(ctx context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.values[key]; !ok {
		return 0, nil
	}
	delete(l.values, key)
	return 1, nil
}

type countingCommitter struct {
	mu      sync.Mutex
	offsets []int64
}

func (c *countingCommitter) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		c.offsets = append(c.offsets, m.Offset)
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) PublishRaw(ctx context.Context, topic, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func TestReservation_DuplicateDeliveriesDecrementOnce(t *testing.T) {
	db := dbtest.Open(t)
	store := NewGormStore(db)
	seedStock(t, store, map[string]int{"PRODUCT_1": 10, "PRODUCT_2": 1})

	publisher := &recordingPublisher{}
	relay := outbox.NewRelay(db, publisher, zap.NewNop())
	tracer := noop.NewTracerProvider().Tracer("test")
	svc := NewService(store, relay, zap.NewNop(), tracer)

	committer := &countingCommitter{}
	processor := eventproc.NewProcessor(config.OrderPlacedTopic, &memoryLocker{values: map[string]string{}},
		committer, LockKey, svc.OnOrderPlaced, zap.NewNop(), tracer)

	payload, _ := json.Marshal(domain.OrderEvent{ID: "ORDER_1", Items: []domain.OrderEventItem{
		{ProductID: "PRODUCT_1", Quantity: 3},
		{ProductID: "PRODUCT_2", Quantity: 2},
	}})

	const deliveries = 5
	results := make([]eventproc.Result, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = processor.Process(context.Background(), kafka.Message{
				Topic:  config.OrderPlacedTopic,
				Offset: int64(i),
				Value:  payload,
			})
		}(i)
	}
	wg.Wait()

	processed := 0
	for _, r := range results {
		switch r {
		case eventproc.Processed:
			processed++
		case eventproc.Duplicate:
		default:
			t.Errorf("unexpected result %s", r)
		}
	}
	if processed != 1 {
		t.Errorf("expected exactly one delivery to be processed, got %d", processed)
	}
	if len(committer.offsets) != deliveries {
		t.Errorf("expected every delivery to be committed, got %d", len(committer.offsets))
	}

	if q := quantityOf(t, store, "PRODUCT_1"); q != 7 {
		t.Errorf("expected PRODUCT_1=7, got %d", q)
	}
	if q := quantityOf(t, store, "PRODUCT_2"); q != 1 {
		t.Errorf("expected PRODUCT_2 untouched, got %d", q)
	}

	want := []string{config.StockReservedTopic, config.OutOfStockTopic}
	if len(publisher.topics) != len(want) || publisher.topics[0] != want[0] || publisher.topics[1] != want[1] {
		t.Errorf("expected %v to be published once, got %v", want, publisher.topics)
	}
}
