package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Producer writes single messages. The topic is carried on each message.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// Consumer fetches messages from a consumer group and acknowledges them
// explicitly. *kafka.Reader satisfies it.
type Consumer interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
