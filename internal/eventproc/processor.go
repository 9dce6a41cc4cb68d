// Package eventproc turns an at-least-once Kafka delivery stream into
// effectively-once handler execution, using a shared lock store for
// deduplication and committing each offset only after its handler succeeded.
package eventproc

import (
	"context"
	"encoding/json"
	"time"

	"fulfillmentservice/internal/platform/lock"
	"fulfillmentservice/internal/platform/metrics"
	"fulfillmentservice/internal/platform/observability"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// Result is the outcome of processing one delivery.
type Result string

const (
	// Processed: the handler ran and the offset was committed.
	Processed Result = "processed"
	// Duplicate: the business key was already held; the offset was committed.
	Duplicate Result = "duplicate"
	// Skipped: the message was malformed; the offset was committed.
	Skipped Result = "skipped"
	// Failed: nothing was committed and the lock was released for a retry.
	Failed Result = "failed"
)

// Locker is the atomic conditional-set / set / delete contract of the lock store.
type Locker interface {
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) (int64, error)
}

// Committer acknowledges consumed messages.
type Committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Handler applies the side effects of one decoded event.
type Handler[T any] func(ctx context.Context, event T) error

// KeyFunc derives the business key of an event. An empty key marks the event
// as malformed.
type KeyFunc[T any] func(event T) string

// Processor wraps a Handler with idempotent, commit-after-success semantics.
type Processor[T any] struct {
	topic     string
	locker    Locker
	committer Committer
	key       KeyFunc[T]
	handler   Handler[T]
	logger    observability.Logger
	tracer    observability.Tracer
}

// NewProcessor creates a Processor for messages of topic.
func NewProcessor[T any](
	topic string,
	locker Locker,
	committer Committer,
	key KeyFunc[T],
	handler Handler[T],
	logger observability.Logger,
	tracer observability.Tracer,
) *Processor[T] {
	return &Processor[T]{
		topic:     topic,
		locker:    locker,
		committer: committer,
		key:       key,
		handler:   handler,
		logger:    logger,
		tracer:    tracer,
	}
}

// Process handles a single delivery. It never returns the handler's error:
// failures are logged and expressed by leaving the offset uncommitted.
func (p *Processor[T]) Process(ctx context.Context, msg kafka.Message) Result {
	start := time.Now()
	result := p.process(ctx, msg)

	metrics.MessagesTotal.WithLabelValues(p.topic, string(result)).Inc()
	metrics.MessageDuration.WithLabelValues(p.topic).Observe(time.Since(start).Seconds())
	return result
}

func (p *Processor[T]) process(ctx context.Context, msg kafka.Message) Result {
	fields := []zap.Field{
		zap.String("topic", p.topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	}

	p.logger.Info("📨 Raw Kafka message received", append(fields, zap.ByteString("key", msg.Key))...)

	if len(msg.Value) == 0 {
		p.logger.Warn("⚠️ Message value is empty, skipping", fields...)
		p.commit(ctx, msg, fields)
		return Skipped
	}

	var event T
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		p.logger.Warn("⚠️ Invalid JSON payload, skipping",
			append(fields, zap.Error(err), zap.ByteString("raw_value", msg.Value))...)
		p.commit(ctx, msg, fields)
		return Skipped
	}

	key := p.key(event)
	if key == "" {
		p.logger.Warn("⚠️ Message has no business id, skipping", fields...)
		p.commit(ctx, msg, fields)
		return Skipped
	}
	fields = append(fields, zap.String("lock_key", key))

	acquired, err := p.locker.SetIfAbsent(ctx, key, lock.StateProcessing)
	if err != nil {
		p.logger.Error("❌ Failed to acquire idempotency lock", append(fields, zap.Error(err))...)
		return Failed
	}
	if !acquired {
		p.logger.Info("🔁 Message already processed or in flight, skipping", fields...)
		p.commit(ctx, msg, fields)
		return Duplicate
	}

	if err := p.handle(ctx, msg, key, event); err != nil {
		p.logger.Error("❌ Failed to process message, releasing lock for redelivery",
			append(fields, zap.Error(err))...)
		// Bookkeeping must outlive a cancelled consume loop.
		if _, delErr := p.locker.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			p.logger.Error("❌ Failed to release idempotency lock", append(fields, zap.Error(delErr))...)
		}
		return Failed
	}

	// The handler's effects are durable at this point, so the offset is
	// committed even when the completion record cannot be written; the lease
	// on the processing marker still blocks an immediate replay.
	if err := p.locker.Set(context.WithoutCancel(ctx), key, lock.StateProcessed); err != nil {
		p.logger.Error("❌ Failed to mark message as processed", append(fields, zap.Error(err))...)
	}
	p.commit(ctx, msg, fields)

	p.logger.Info("✅ Message processed", fields...)
	return Processed
}

func (p *Processor[T]) handle(ctx context.Context, msg kafka.Message, key string, event T) error {
	msgCtx := extractTraceContext(ctx, msg.Headers)
	spanCtx, span := p.tracer.Start(msgCtx, "consume "+p.topic)
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.destination.name", p.topic),
		attribute.Int("messaging.kafka.partition", msg.Partition),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
		attribute.String("idempotency.key", key),
	)

	if err := p.handler(spanCtx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "message processed")
	return nil
}

func (p *Processor[T]) commit(ctx context.Context, msg kafka.Message, fields []zap.Field) {
	if err := p.committer.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.logger.Error("❌ Failed to commit offset", append(fields, zap.Error(err))...)
	}
}

// extractTraceContext extracts OpenTelemetry trace context from Kafka message headers
func extractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, header := range headers {
		carrier[string(header.Key)] = string(header.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
