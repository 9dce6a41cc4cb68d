package domain

import "time"

// ItemStatus is the fulfillment state of a single order line.
type ItemStatus string

const (
	ItemUnfulfilled ItemStatus = "UNFULFILLED"
	ItemFulfilled   ItemStatus = "FULFILLED"
)

// Order is the persisted customer order. Its identity never changes; only the
// status of its items moves during the saga.
type Order struct {
	ID        string      `gorm:"primaryKey"`
	Items     []OrderItem `gorm:"foreignKey:OrderID"`
	CreatedAt time.Time
}

// OrderItem is one requested product line of an Order.
type OrderItem struct {
	ID        string     `gorm:"primaryKey"`
	OrderID   string     `gorm:"index;not null"`
	ProductID string     `gorm:"index;not null"`
	Quantity  int        `gorm:"not null"`
	Status    ItemStatus `gorm:"type:varchar(16);not null"`
}

// View converts the persisted order into the payload shape carried on topics.
func (o *Order) View() OrderEvent {
	view := OrderEvent{ID: o.ID, Items: make([]OrderEventItem, 0, len(o.Items))}
	for _, item := range o.Items {
		view.Items = append(view.Items, OrderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Status:    item.Status,
		})
	}
	return view
}
