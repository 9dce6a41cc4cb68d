package shipping

import (
	"context"
	"errors"

	"fulfillmentservice/internal/domain"

	"gorm.io/gorm"
)

// GormStore persists shipments with gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Create inserts the shipment and its items in one transaction.
func (s *GormStore) Create(ctx context.Context, shipping *domain.Shipping) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(shipping).Error
	})
}

// FindByID loads a shipment with its items.
func (s *GormStore) FindByID(ctx context.Context, id string) (*domain.Shipping, error) {
	return s.first(ctx, "id = ?", id)
}

// FindByOrderID loads the shipment created for orderID.
func (s *GormStore) FindByOrderID(ctx context.Context, orderID string) (*domain.Shipping, error) {
	return s.first(ctx, "order_id = ?", orderID)
}

func (s *GormStore) first(ctx context.Context, query string, arg string) (*domain.Shipping, error) {
	var shipping domain.Shipping
	err := s.db.WithContext(ctx).Preload("Items").First(&shipping, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrShippingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &shipping, nil
}

// UpdateStatus sets the status of shipment id.
func (s *GormStore) UpdateStatus(ctx context.Context, id string, status domain.ShippingStatus) error {
	res := s.db.WithContext(ctx).Model(&domain.Shipping{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrShippingNotFound
	}
	return nil
}
