package inventory

import (
	"context"
	"errors"
	"fmt"

	"fulfillmentservice/internal/config"
	"fulfillmentservice/internal/domain"
	"fulfillmentservice/internal/outbox"
	"fulfillmentservice/internal/platform/metrics"
	"fulfillmentservice/internal/platform/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Store is the inventory side of the record store.
type Store interface {
	FindByProductIDs(ctx context.Context, productIDs []string) ([]domain.Inventory, error)
	// Reserve applies every decrement and records events in one transaction.
	Reserve(ctx context.Context, orderID string, decrements []domain.Decrement, events []outbox.Message) error
	SetStock(ctx context.Context, productID string, quantity int) (*domain.Inventory, error)
}

// Flusher publishes pending outbox messages.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// Service reserves stock for placed orders.
type Service struct {
	store  Store
	relay  Flusher
	logger observability.Logger
	tracer observability.Tracer
}

// NewService creates an inventory service with explicit dependencies
func NewService(store Store, relay Flusher, logger observability.Logger, tracer observability.Tracer) *Service {
	return &Service{store: store, relay: relay, logger: logger, tracer: tracer}
}

// LockKey is the idempotency key of an OrderPlaced event.
func LockKey(order domain.OrderEvent) string {
	if order.ID == "" {
		return ""
	}
	return "order:" + order.ID
}

// OnOrderPlaced splits the order into fulfillable and unfulfillable items,
// decrements stock for the former and emits StockReserved and/or OutOfStock.
func (s *Service) OnOrderPlaced(ctx context.Context, order domain.OrderEvent) error {
	ctx, span := s.tracer.Start(ctx, "inventory_reservation")
	defer span.End()

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
	)

	s.logger.Info("🔍 Checking inventory for order",
		zap.String("order_id", order.ID),
		zap.Int("items", len(order.Items)),
	)

	if len(order.Items) == 0 {
		s.logger.Warn("⚠️ Order has no items, nothing to reserve", zap.String("order_id", order.ID))
		return nil
	}

	inventories, err := s.store.FindByProductIDs(ctx, order.ProductIDs())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("load inventory for order %s: %w", order.ID, err)
	}

	fulfilled, unfulfilled := Partition(order.Items, inventories)

	events, err := reservationEvents(order.ID, fulfilled, unfulfilled)
	if err != nil {
		return err
	}

	decrements := make([]domain.Decrement, 0, len(fulfilled))
	for _, item := range fulfilled {
		decrements = append(decrements, domain.Decrement{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	err = s.store.Reserve(ctx, order.ID, decrements, events)
	switch {
	case errors.Is(err, domain.ErrAlreadyReserved):
		s.logger.Info("🔁 Reservation already recorded for order", zap.String("order_id", order.ID))
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("reserve stock for order %s: %w", order.ID, err)
	default:
		metrics.ReservedItems.WithLabelValues(string(domain.ItemFulfilled)).Add(float64(len(fulfilled)))
		metrics.ReservedItems.WithLabelValues(string(domain.ItemUnfulfilled)).Add(float64(len(unfulfilled)))
	}

	span.SetAttributes(
		attribute.Int("inventory.fulfilled_items", len(fulfilled)),
		attribute.Int("inventory.unfulfilled_items", len(unfulfilled)),
	)

	// The reservation is durable; publishing is retried by the relay.
	if _, err := s.relay.Flush(ctx); err != nil {
		s.logger.Warn("⚠️ Outbox flush failed, relay will retry",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}

	span.SetStatus(codes.Ok, "inventory reserved")
	s.logger.Info("✅ Inventory reservation complete",
		zap.String("order_id", order.ID),
		zap.Int("fulfilled", len(fulfilled)),
		zap.Int("unfulfilled", len(unfulfilled)),
	)
	return nil
}

// SetStock sets the available quantity of a product, creating it if needed.
func (s *Service) SetStock(ctx context.Context, productID string, quantity int) (*domain.Inventory, error) {
	if productID == "" || quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	inv, err := s.store.SetStock(ctx, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("set stock for %s: %w", productID, err)
	}
	s.logger.Info("📦 Stock updated", zap.String("product_id", productID), zap.Int("quantity", quantity))
	return inv, nil
}

// Partition classifies items against the available stock. An item is
// fulfilled when its product has at least the requested quantity left after
// earlier items of the same order were allocated. Products without an
// inventory record are unfulfilled. Input order is preserved in both results.
func Partition(items []domain.OrderEventItem, inventories []domain.Inventory) (fulfilled, unfulfilled []domain.OrderEventItem) {
	available := make(map[string]int, len(inventories))
	for _, inv := range inventories {
		available[inv.ProductID] = inv.Quantity
	}

	for _, item := range items {
		left, ok := available[item.ProductID]
		if ok && item.Quantity > 0 && left >= item.Quantity {
			available[item.ProductID] = left - item.Quantity
			fulfilled = append(fulfilled, domain.OrderEventItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Status:    domain.ItemFulfilled,
			})
			continue
		}
		unfulfilled = append(unfulfilled, domain.OrderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Status:    domain.ItemUnfulfilled,
		})
	}
	return fulfilled, unfulfilled
}

// reservationEvents builds StockReserved before OutOfStock.
func reservationEvents(orderID string, fulfilled, unfulfilled []domain.OrderEventItem) ([]outbox.Message, error) {
	var events []outbox.Message
	for _, e := range []struct {
		topic string
		items []domain.OrderEventItem
	}{
		{config.StockReservedTopic, fulfilled},
		{config.OutOfStockTopic, unfulfilled},
	} {
		if len(e.items) == 0 {
			continue
		}
		msg, err := outbox.NewMessage(orderID, len(events), e.topic, orderID,
			domain.OrderEvent{ID: orderID, Items: e.items})
		if err != nil {
			return nil, err
		}
		events = append(events, msg)
	}
	return events, nil
}
