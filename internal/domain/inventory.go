package domain

// Inventory is the stock level of one product.
type Inventory struct {
	ID        string `gorm:"primaryKey"`
	ProductID string `gorm:"uniqueIndex;not null"`
	Quantity  int    `gorm:"not null;check:quantity >= 0"`
}

// Decrement is a single stock reduction applied during a reservation.
type Decrement struct {
	ProductID string
	Quantity  int
}
