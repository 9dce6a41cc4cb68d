package order

import (
	"context"
	"fmt"

	"fulfillmentservice/internal/config"
	"fulfillmentservice/internal/domain"
	"fulfillmentservice/internal/platform/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Store is the order side of the record store.
type Store interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindItems(ctx context.Context, orderID string, productIDs []string) ([]domain.OrderItem, error)
	UpdateItemStatus(ctx context.Context, orderID, productID string, status domain.ItemStatus) error
}

// Publisher sends an event to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// Service drives the order side of the fulfillment saga.
type Service struct {
	store     Store
	publisher Publisher
	logger    observability.Logger
	tracer    observability.Tracer
	newID     func() string
}

// NewService creates an order service with explicit dependencies
func NewService(store Store, publisher Publisher, logger observability.Logger, tracer observability.Tracer) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
		tracer:    tracer,
		newID:     uuid.NewString,
	}
}

// LockKey is the idempotency key of a StockReserved event.
func LockKey(order domain.OrderEvent) string {
	if order.ID == "" {
		return ""
	}
	return "stock-reserved:" + order.ID
}

// CreateOrder persists a new order with every item UNFULFILLED and publishes
// OrderPlaced. Invalid input is rejected before anything is written.
func (s *Service) CreateOrder(ctx context.Context, items []domain.OrderEventItem) (*domain.OrderEvent, error) {
	ctx, span := s.tracer.Start(ctx, "create_order")
	defer span.End()

	if len(items) == 0 {
		span.SetStatus(codes.Error, domain.ErrEmptyOrder.Error())
		return nil, domain.ErrEmptyOrder
	}
	// Item status is tracked per (order, product), so a product may appear once.
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 {
			span.SetStatus(codes.Error, domain.ErrInvalidItem.Error())
			return nil, fmt.Errorf("%w: item %d", domain.ErrInvalidItem, i)
		}
		if seen[item.ProductID] {
			span.SetStatus(codes.Error, domain.ErrInvalidItem.Error())
			return nil, fmt.Errorf("%w: product %s listed more than once", domain.ErrInvalidItem, item.ProductID)
		}
		seen[item.ProductID] = true
	}

	order := &domain.Order{ID: s.newID()}
	for _, item := range items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:        s.newID(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Status:    domain.ItemUnfulfilled,
		})
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
	)

	if err := s.store.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create order: %w", err)
	}

	view := order.View()
	if err := s.publisher.Publish(ctx, config.OrderPlacedTopic, order.ID, view); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "order placed")
	s.logger.Info("🛒 Order placed",
		zap.String("order_id", order.ID),
		zap.Int("items", len(order.Items)),
	)
	return &view, nil
}

// GetOrder returns the current view of an order.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.OrderEvent, error) {
	order, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := order.View()
	return &view, nil
}

// OnStockReserved marks every reserved item FULFILLED and then publishes
// OrderReadyForShipping carrying the event's own items. All updates complete
// before the event is sent.
func (s *Service) OnStockReserved(ctx context.Context, order domain.OrderEvent) error {
	ctx, span := s.tracer.Start(ctx, "order_stock_reserved")
	defer span.End()

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
	)

	persisted, err := s.store.FindItems(ctx, order.ID, order.ProductIDs())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("load items of order %s: %w", order.ID, err)
	}

	known := make(map[string]bool, len(persisted))
	for _, item := range persisted {
		known[item.ProductID] = true
	}
	for _, item := range order.Items {
		if !known[item.ProductID] {
			err := fmt.Errorf("%w: order %s product %s", domain.ErrOrderItemNotFound, order.ID, item.ProductID)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	for _, item := range order.Items {
		if err := s.store.UpdateItemStatus(ctx, order.ID, item.ProductID, domain.ItemFulfilled); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("fulfill item %s of order %s: %w", item.ProductID, order.ID, err)
		}
	}

	if err := s.publisher.Publish(ctx, config.OrderReadyForShippingTopic, order.ID, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "order ready for shipping")
	s.logger.Info("✅ Order ready for shipping",
		zap.String("order_id", order.ID),
		zap.Int("items", len(order.Items)),
	)
	return nil
}
