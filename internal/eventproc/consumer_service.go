package eventproc

import (
	"context"
	"errors"
	"io"
	"time"

	"fulfillmentservice/internal/platform/kafka"
	"fulfillmentservice/internal/platform/observability"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MessageProcessor handles one delivery.
type MessageProcessor interface {
	Process(ctx context.Context, msg kafkago.Message) Result
}

var errRedeliver = errors.New("message processing failed")

// ConsumerService is a pull loop that dispatches fetched messages to a
// processor on a bounded number of goroutines. A failed message is redelivered
// to the processor with exponential backoff until it succeeds or the loop
// stops; there is no retry cap.
type ConsumerService struct {
	name        string
	consumer    kafka.Consumer
	processor   MessageProcessor
	concurrency int
	retryDelay  time.Duration
	newBackOff  func() backoff.BackOff
	logger      observability.Logger
}

// NewConsumerService creates a ConsumerService. concurrency below one is
// treated as one.
func NewConsumerService(name string, consumer kafka.Consumer, processor MessageProcessor, concurrency int, logger observability.Logger) *ConsumerService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ConsumerService{
		name:        name,
		consumer:    consumer,
		processor:   processor,
		concurrency: concurrency,
		retryDelay:  time.Second,
		newBackOff:  defaultBackOff,
		logger:      logger,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Start runs the loop until ctx is done or the consumer is closed, then waits
// for in-flight messages.
func (c *ConsumerService) Start(ctx context.Context) error {
	c.logger.Info("Kafka consumer started. Waiting for messages...",
		zap.String("consumer", c.name),
		zap.Int("concurrency", c.concurrency),
	)

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for {
		msg, err := c.consumer.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Context done, exiting Kafka read loop.", zap.String("consumer", c.name), zap.Error(err))
				break
			}
			if errors.Is(err, io.EOF) {
				c.logger.Info("Consumer closed, exiting Kafka read loop.", zap.String("consumer", c.name))
				break
			}
			c.logger.Error("❌ Error reading from Kafka", zap.String("consumer", c.name), zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
			continue
		}

		g.Go(func() error {
			c.deliver(ctx, msg)
			return nil
		})
	}

	_ = g.Wait()
	c.logger.Info("Consumer service finished. Shutting down...", zap.String("consumer", c.name))
	return nil
}

// deliver hands msg to the processor, redelivering it while the outcome is
// Failed. Each attempt goes through the full idempotent path, so the lock is
// re-acquired and a concurrent winner turns the retry into a duplicate.
func (c *ConsumerService) deliver(ctx context.Context, msg kafkago.Message) {
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if c.processor.Process(ctx, msg) == Failed {
			c.logger.Warn("🔁 Scheduling redelivery",
				zap.String("consumer", c.name),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Int("attempt", attempt),
			)
			return errRedeliver
		}
		return nil
	}, backoff.WithContext(c.newBackOff(), ctx))
	if err != nil {
		c.logger.Info("Redelivery abandoned, message stays uncommitted",
			zap.String("consumer", c.name),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}
