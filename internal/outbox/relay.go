package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fulfillmentservice/internal/platform/metrics"
	"fulfillmentservice/internal/platform/observability"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultBatchSize = 100

// Publisher sends an encoded payload to a topic.
type Publisher interface {
	PublishRaw(ctx context.Context, topic, key string, payload []byte) error
}

// Relay publishes pending outbox messages in creation order and marks them
// sent. Delivery is at-least-once: a crash between publish and mark replays
// the message.
type Relay struct {
	db        *gorm.DB
	publisher Publisher
	batchSize int
	logger    observability.Logger

	mu sync.Mutex
}

// NewRelay creates a Relay.
func NewRelay(db *gorm.DB, publisher Publisher, logger observability.Logger) *Relay {
	return &Relay{db: db, publisher: publisher, batchSize: defaultBatchSize, logger: logger}
}

// Flush publishes up to one batch of pending messages and returns how many
// were sent. It stops at the first publish failure so later messages never
// overtake earlier ones.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []Message
	err := r.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("created_at, aggregate_id, position").
		Limit(r.batchSize).
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("load pending outbox messages: %w", err)
	}

	sent := 0
	for _, msg := range pending {
		if err := r.publisher.PublishRaw(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			r.recordPending(ctx)
			return sent, fmt.Errorf("publish outbox message %s: %w", msg.ID, err)
		}

		now := time.Now().UTC()
		if err := r.db.WithContext(ctx).Model(&Message{}).
			Where("id = ?", msg.ID).
			Update("sent_at", now).Error; err != nil {
			r.recordPending(ctx)
			return sent, fmt.Errorf("mark outbox message %s sent: %w", msg.ID, err)
		}
		sent++
	}

	r.recordPending(ctx)
	return sent, nil
}

// Run flushes every interval until ctx is done.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	r.logger.Info("Outbox relay started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped")
			return nil
		case <-ticker.C:
			sent, err := r.Flush(ctx)
			if err != nil && ctx.Err() == nil {
				r.logger.Error("❌ Outbox flush failed", zap.Error(err), zap.Int("sent", sent))
				continue
			}
			if sent > 0 {
				r.logger.Info("📤 Outbox messages relayed", zap.Int("sent", sent))
			}
		}
	}
}

func (r *Relay) recordPending(ctx context.Context) {
	var count int64
	if err := r.db.WithContext(context.WithoutCancel(ctx)).Model(&Message{}).
		Where("sent_at IS NULL").
		Count(&count).Error; err == nil {
		metrics.OutboxPending.Set(float64(count))
	}
}
