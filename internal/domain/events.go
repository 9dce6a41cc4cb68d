package domain

// OrderEvent is the payload of OrderPlaced, StockReserved, OutOfStock and
// OrderReadyForShipping.
type OrderEvent struct {
	ID    string           `json:"id"`
	Items []OrderEventItem `json:"items"`
}

// OrderEventItem is one line of an OrderEvent.
type OrderEventItem struct {
	ProductID string     `json:"productId"`
	Quantity  int        `json:"quantity"`
	Status    ItemStatus `json:"status,omitempty"`
}

// ProductIDs returns the product ids of the event items in order.
func (e OrderEvent) ProductIDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// ShippingStatusEvent is the payload of ShippingStatus.
type ShippingStatusEvent struct {
	ID      string              `json:"id"`
	OrderID string              `json:"orderId"`
	Status  ShippingStatus      `json:"status"`
	Items   []ShippingEventItem `json:"items,omitempty"`
}

// ShippingEventItem is one line of a ShippingStatusEvent.
type ShippingEventItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}
