package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is an event written in the same transaction as the state change
// that produced it, published later by the Relay.
type Message struct {
	ID          string `gorm:"primaryKey"`
	AggregateID string `gorm:"index;not null"`
	// Position orders messages written for the same aggregate in one transaction.
	Position  int        `gorm:"not null"`
	Topic     string     `gorm:"index;not null"`
	Key       string     `gorm:"not null"`
	Payload   []byte     `gorm:"not null"`
	CreatedAt time.Time  `gorm:"index"`
	SentAt    *time.Time `gorm:"index"`
}

// TableName overrides the gorm default.
func (Message) TableName() string { return "outbox_messages" }

// NewMessage encodes event as a pending message.
func NewMessage(aggregateID string, position int, topic, key string, event any) (Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Message{}, fmt.Errorf("serialize %s event: %w", topic, err)
	}
	return Message{
		ID:          uuid.NewString(),
		AggregateID: aggregateID,
		Position:    position,
		Topic:       topic,
		Key:         key,
		Payload:     payload,
	}, nil
}
