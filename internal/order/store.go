package order

import (
	"context"
	"errors"

	"fulfillmentservice/internal/domain"

	"gorm.io/gorm"
)

// GormStore persists orders with gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Create inserts the order and its items in one transaction.
func (s *GormStore) Create(ctx context.Context, order *domain.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
}

// FindByID loads an order with its items.
func (s *GormStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindItems returns the items of orderID whose product is in productIDs.
func (s *GormStore) FindItems(ctx context.Context, orderID string, productIDs []string) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	if len(productIDs) == 0 {
		return items, nil
	}
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND product_id IN ?", orderID, productIDs).
		Find(&items).Error
	return items, err
}

// UpdateItemStatus sets the status of every item of orderID for productID.
func (s *GormStore) UpdateItemStatus(ctx context.Context, orderID, productID string, status domain.ItemStatus) error {
	return s.db.WithContext(ctx).Model(&domain.OrderItem{}).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		Update("status", status).Error
}
