package eventproc

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"fulfillmentservice/internal/platform/lock"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type testOrder struct {
	ID    string `json:"id"`
	Items []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

func orderKey(o testOrder) string {
	if o.ID == "" {
		return ""
	}
	return "order:" + o.ID
}

type lockCall struct {
	op, key, value string
}

type fakeLocker struct {
	mu     sync.Mutex
	values map[string]string
	calls  []lockCall
	setErr error
	nxErr  error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{values: map[string]string{}}
}

func (l *fakeLocker) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, lockCall{"setnx", key, value})
	if l.nxErr != nil {
		return false, l.nxErr
	}
	if _, ok := l.values[key]; ok {
		return false, nil
	}
	l.values[key] = value
	return true, nil
}

func (l *fakeLocker) Set(ctx context.Context, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, lockCall{"set", key, value})
	if l.setErr != nil {
		return l.setErr
	}
	l.values[key] = value
	return nil
}

func (l *fakeLocker) Delete(ctx context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, lockCall{"del", key, ""})
	if _, ok := l.values[key]; !ok {
		return 0, nil
	}
	delete(l.values, key)
	return 1, nil
}

func (l *fakeLocker) value(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.values[key]
	return v, ok
}

func (l *fakeLocker) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

type fakeCommitter struct {
	mu      sync.Mutex
	batches [][]kafka.Message
}

func (c *fakeCommitter) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, msgs)
	return nil
}

func (c *fakeCommitter) offsets() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var offsets []int64
	for _, batch := range c.batches {
		for _, m := range batch {
			offsets = append(offsets, m.Offset)
		}
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets
}

func (c *fakeCommitter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func newTestProcessor(locker Locker, committer Committer, handler Handler[testOrder]) *Processor[testOrder] {
	return NewProcessor("OrderPlaced", locker, committer, orderKey, handler,
		zap.NewNop(), noop.NewTracerProvider().Tracer("test"))
}

func orderMessage(t *testing.T, id string, offset int64) kafka.Message {
	t.Helper()
	value, err := json.Marshal(map[string]any{"id": id, "items": []any{}})
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Topic: "OrderPlaced", Partition: 0, Offset: offset, Key: []byte(id), Value: value}
}

func TestProcessor_SingleOrder(t *testing.T) {
	locker := newFakeLocker()
	committer := &fakeCommitter{}

	var handled []string
	processor := newTestProcessor(locker, committer, func(ctx context.Context, o testOrder) error {
		handled = append(handled, o.ID)
		return nil
	})

	result := processor.Process(context.Background(), orderMessage(t, "1", 0))
	if result != Processed {
		t.Fatalf("expected %s, got %s", Processed, result)
	}

	if len(handled) != 1 || handled[0] != "1" {
		t.Errorf("expected handler called once with order 1, got %v", handled)
	}

	want := []lockCall{
		{"setnx", "order:1", lock.StateProcessing},
		{"set", "order:1", lock.StateProcessed},
	}
	if len(locker.calls) != len(want) {
		t.Fatalf("expected lock calls %v, got %v", want, locker.calls)
	}
	for i := range want {
		if locker.calls[i] != want[i] {
			t.Errorf("lock call %d: expected %v, got %v", i, want[i], locker.calls[i])
		}
	}

	if committer.calls() != 1 {
		t.Fatalf("expected 1 commit, got %d", committer.calls())
	}
	committed := committer.batches[0][0]
	if committed.Topic != "OrderPlaced" || committed.Partition != 0 || committed.Offset != 0 {
		t.Errorf("unexpected committed message: %s/%d/%d", committed.Topic, committed.Partition, committed.Offset)
	}
}

func TestProcessor_ThreeConcurrentOrders(t *testing.T) {
	locker := newFakeLocker()
	committer := &fakeCommitter{}

	var mu sync.Mutex
	handled := map[string]int{}
	processor := newTestProcessor(locker, committer, func(ctx context.Context, o testOrder) error {
		mu.Lock()
		handled[o.ID]++
		mu.Unlock()
		return nil
	})

	ids := []string{"1", "2", "3"}
	var wg sync.WaitGroup
	results := make([]Result, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = processor.Process(context.Background(), orderMessage(t, id, int64(i)))
		}(i, id)
	}
	wg.Wait()

	for i, id := range ids {
		if results[i] != Processed {
			t.Errorf("order %s: expected %s, got %s", id, Processed, results[i])
		}
		if handled[id] != 1 {
			t.Errorf("order %s: expected 1 handler call, got %d", id, handled[id])
		}
		if v, _ := locker.value("order:" + id); v != lock.StateProcessed {
			t.Errorf("order %s: expected lock %q, got %q", id, lock.StateProcessed, v)
		}
	}

	if committer.calls() != 3 {
		t.Errorf("expected 3 separate commits, got %d", committer.calls())
	}
	offsets := committer.offsets()
	if len(offsets) != 3 || offsets[0] != 0 || offsets[1] != 1 || offsets[2] != 2 {
		t.Errorf("expected offsets [0 1 2], got %v", offsets)
	}
}

func TestProcessor_ConcurrentDuplicateDelivery(t *testing.T) {
	locker := newFakeLocker()
	committer := &fakeCommitter{}

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	processor := newTestProcessor(locker, committer, func(ctx context.Context, o testOrder) error {
		calls.Add(1)
		close(entered)
		<-release
		return nil
	})

	msg := orderMessage(t, "O", 7)

	first := make(chan Result, 1)
	go func() { first <- processor.Process(context.Background(), msg) }()

	<-entered
	second := processor.Process(context.Background(), msg)
	close(release)

	if second != Duplicate {
		t.Errorf("expected redelivery to be %s, got %s", Duplicate, second)
	}
	if r := <-first; r != Processed {
		t.Errorf("expected first delivery to be %s, got %s", Processed, r)
	}
	if calls.Load() != 1 {
		t.Errorf("expected handler to run once, got %d", calls.Load())
	}
	if committer.calls() != 2 {
		t.Errorf("expected both deliveries acknowledged, got %d commits", committer.calls())
	}
}

func TestProcessor_AlreadyProcessed(t *testing.T) {
	locker := newFakeLocker()
	locker.values["order:1"] = lock.StateProcessed
	committer := &fakeCommitter{}

	called := false
	processor := newTestProcessor(locker, committer, func(ctx context.Context, o testOrder) error {
		called = true
		return nil
	})

	if result := processor.Process(context.Background(), orderMessage(t, "1", 3)); result != Duplicate {
		t.Errorf("expected %s, got %s", Duplicate, result)
	}
	if called {
		t.Error("handler should not run for a processed key")
	}
	if committer.calls() != 1 {
		t.Errorf("expected duplicate to be committed, got %d commits", committer.calls())
	}
	if v, _ := locker.value("order:1"); v != lock.StateProcessed {
		t.Errorf("completion record should be untouched, got %q", v)
	}
}

func TestProcessor_HandlerFailureReleasesLock(t *testing.T) {
	locker := newFakeLocker()
	committer := &fakeCommitter{}

	processor := newTestProcessor(locker, committer, func(ctx context.Context, o testOrder) error {
		return errors.New("database unavailable")
	})

	if result := processor.Process(context.Background(), orderMessage(t, "1", 0)); result != Failed {
		t.Fatalf("expected %s, got %s", Failed, result)
	}

	if _, ok := locker.value("order:1"); ok {
		t.Error("expected lock key to be absent after failure")
	}
	if committer.calls() != 0 {
		t.Errorf("expected no commit after failure, got %d", committer.calls())
	}

	// A redelivery is retried rather than skipped.
	retried := newTestProcessor(locker, committer, func(ctx context.Context, o testOrder) error { return nil })
	if result := retried.Process(context.Background(), orderMessage(t, "1", 0)); result != Processed {
		t.Errorf("expected retry to be %s, got %s", Processed, result)
	}
}

func TestProcessor_EmptyValueIsSkipped(t *testing.T) {
	locker := newFakeLocker()
	committer := &fakeCommitter{}

	called := false
	processor := newTestProcessor(locker, committer, func(ctx context.Context, o testOrder) error {
		called = true
		return nil
	})

	msg := kafka.Message{Topic: "OrderPlaced", Partition: 0, Offset: 0, Key: []byte("1")}
	if result := processor.Process(context.Background(), msg); result != Skipped {
		t.Fatalf("expected %s, got %s", Skipped, result)
	}

	if called {
		t.Error("handler should not run for an empty message")
	}
	if locker.callCount() != 0 {
		t.Errorf("expected no lock interaction, got %v", locker.calls)
	}
}

func TestProcessor_MalformedPayloads(t *testing.T) {
	cases := map[string][]byte{
		"invalid json": []byte("{not json"),
		"missing id":   []byte(`{"items":[]}`),
	}

	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			locker := newFakeLocker()
			committer := &fakeCommitter{}
			processor := newTestProcessor(locker, committer, func(ctx context.Context, o testOrder) error {
				t.Error("handler should not run")
				return nil
			})

			msg := kafka.Message{Topic: "OrderPlaced", Offset: 4, Value: value}
			if result := processor.Process(context.Background(), msg); result != Skipped {
				t.Errorf("expected %s, got %s", Skipped, result)
			}
			if locker.callCount() != 0 {
				t.Errorf("expected no lock interaction, got %v", locker.calls)
			}
			if committer.calls() != 1 {
				t.Errorf("expected poison message to be acknowledged, got %d commits", committer.calls())
			}
		})
	}
}

func TestProcessor_LockStoreUnavailable(t *testing.T) {
	locker := newFakeLocker()
	locker.nxErr = errors.New("redis: connection refused")
	committer := &fakeCommitter{}

	called := false
	processor := newTestProcessor(locker, committer, func(ctx context.Context, o testOrder) error {
		called = true
		return nil
	})

	if result := processor.Process(context.Background(), orderMessage(t, "1", 0)); result != Failed {
		t.Errorf("expected %s, got %s", Failed, result)
	}
	if called {
		t.Error("handler should not run without the lock")
	}
	if committer.calls() != 0 {
		t.Errorf("expected no commit, got %d", committer.calls())
	}
}

func TestProcessor_CompletionRecordFailureStillCommits(t *testing.T) {
	locker := newFakeLocker()
	locker.setErr = errors.New("redis: timeout")
	committer := &fakeCommitter{}

	processor := newTestProcessor(locker, committer, func(ctx context.Context, o testOrder) error { return nil })

	if result := processor.Process(context.Background(), orderMessage(t, "1", 0)); result != Processed {
		t.Errorf("expected %s, got %s", Processed, result)
	}
	if committer.calls() != 1 {
		t.Errorf("expected commit after durable effects, got %d", committer.calls())
	}
	if v, _ := locker.value("order:1"); v != lock.StateProcessing {
		t.Errorf("expected processing marker to remain, got %q", v)
	}
}
