package inventory

import (
	"context"
	"fmt"

	"fulfillmentservice/internal/config"
	"fulfillmentservice/internal/domain"
	"fulfillmentservice/internal/outbox"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists inventory with gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindByProductIDs loads every inventory row for productIDs in one query.
func (s *GormStore) FindByProductIDs(ctx context.Context, productIDs []string) ([]domain.Inventory, error) {
	var inventories []domain.Inventory
	if len(productIDs) == 0 {
		return inventories, nil
	}
	err := s.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Find(&inventories).Error
	return inventories, err
}

// Reserve decrements stock and stores events atomically. A decrement only
// applies while quantity >= requested; otherwise the transaction rolls back
// with ErrInsufficientStock. Existing reservation events for orderID make the
// call a no-op returning ErrAlreadyReserved.
func (s *GormStore) Reserve(ctx context.Context, orderID string, decrements []domain.Decrement, events []outbox.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&outbox.Message{}).
			Where("aggregate_id = ? AND topic IN ?", orderID,
				[]string{config.StockReservedTopic, config.OutOfStockTopic}).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return domain.ErrAlreadyReserved
		}

		for _, d := range decrements {
			res := tx.Model(&domain.Inventory{}).
				Where("product_id = ? AND quantity >= ?", d.ProductID, d.Quantity).
				Update("quantity", gorm.Expr("quantity - ?", d.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, d.ProductID)
			}
		}

		if len(events) > 0 {
			if err := tx.Create(&events).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SetStock upserts the quantity of productID.
func (s *GormStore) SetStock(ctx context.Context, productID string, quantity int) (*domain.Inventory, error) {
	var stored domain.Inventory

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := domain.Inventory{ID: uuid.NewString(), ProductID: productID, Quantity: quantity}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
		}).Create(&row).Error; err != nil {
			return err
		}
		// On conflict the stored row keeps its original id.
		return tx.Where("product_id = ?", productID).First(&stored).Error
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}
