package domain

import (
	"fmt"
	"strings"
	"time"
)

// ShippingStatus is the lifecycle state of a shipment.
type ShippingStatus string

const (
	ShippingPending   ShippingStatus = "PENDING"
	ShippingShipped   ShippingStatus = "SHIPPED"
	ShippingDelivered ShippingStatus = "DELIVERED"
)

var shippingRank = map[ShippingStatus]int{
	ShippingPending:   0,
	ShippingShipped:   1,
	ShippingDelivered: 2,
}

// ParseShippingStatus normalizes and validates a status name.
func ParseShippingStatus(raw string) (ShippingStatus, error) {
	status := ShippingStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := shippingRank[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// CanAdvanceTo reports whether moving from s to next keeps the status monotonic.
// Re-applying the current status is allowed.
func (s ShippingStatus) CanAdvanceTo(next ShippingStatus) bool {
	from, ok := shippingRank[s]
	if !ok {
		return false
	}
	to, ok := shippingRank[next]
	return ok && to >= from
}

// Shipping is a shipment created for an order. It references the order but
// does not own it.
type Shipping struct {
	ID        string         `gorm:"primaryKey"`
	OrderID   string         `gorm:"index;not null"`
	Status    ShippingStatus `gorm:"type:varchar(16);not null"`
	Items     []ShippingItem `gorm:"foreignKey:ShippingID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShippingItem is an immutable line of a Shipping.
type ShippingItem struct {
	ID         string `gorm:"primaryKey"`
	ShippingID string `gorm:"index;not null"`
	ProductID  string `gorm:"not null"`
	Quantity   int    `gorm:"not null"`
}

// Snapshot builds the ShippingStatus payload for this shipment.
func (s *Shipping) Snapshot() ShippingStatusEvent {
	event := ShippingStatusEvent{ID: s.ID, OrderID: s.OrderID, Status: s.Status}
	for _, item := range s.Items {
		event.Items = append(event.Items, ShippingEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return event
}
