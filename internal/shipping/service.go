package shipping

import (
	"context"
	"errors"
	"fmt"

	"fulfillmentservice/internal/config"
	"fulfillmentservice/internal/domain"
	"fulfillmentservice/internal/platform/metrics"
	"fulfillmentservice/internal/platform/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Store is the shipping side of the record store.
type Store interface {
	Create(ctx context.Context, shipping *domain.Shipping) error
	FindByID(ctx context.Context, id string) (*domain.Shipping, error)
	FindByOrderID(ctx context.Context, orderID string) (*domain.Shipping, error)
	UpdateStatus(ctx context.Context, id string, status domain.ShippingStatus) error
}

// Publisher sends an event to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// Service creates shipments for ready orders and moves them through their
// lifecycle.
type Service struct {
	store     Store
	publisher Publisher
	logger    observability.Logger
	tracer    observability.Tracer
	newID     func() string
}

// NewService creates a shipping service with explicit dependencies
func NewService(store Store, publisher Publisher, logger observability.Logger, tracer observability.Tracer) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
		tracer:    tracer,
		newID:     uuid.NewString,
	}
}

// LockKey is the idempotency key of an OrderReadyForShipping event.
func LockKey(order domain.OrderEvent) string {
	if order.ID == "" {
		return ""
	}
	return "shipping:" + order.ID
}

// OnOrderReadyForShipping creates a PENDING shipment for the order and
// publishes its initial ShippingStatus. A shipment that already exists for
// the order is republished instead of created twice.
func (s *Service) OnOrderReadyForShipping(ctx context.Context, order domain.OrderEvent) error {
	ctx, span := s.tracer.Start(ctx, "create_shipping")
	defer span.End()

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
	)

	shipping, err := s.store.FindByOrderID(ctx, order.ID)
	switch {
	case err == nil:
		s.logger.Info("🔁 Shipping already exists for order",
			zap.String("order_id", order.ID),
			zap.String("shipping_id", shipping.ID),
		)
	case errors.Is(err, domain.ErrShippingNotFound):
		shipping = s.newShipping(order)
		if err := s.store.Create(ctx, shipping); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("create shipping for order %s: %w", order.ID, err)
		}
		metrics.ShippingTransitions.WithLabelValues(string(shipping.Status)).Inc()
	default:
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("look up shipping for order %s: %w", order.ID, err)
	}

	span.SetAttributes(attribute.String("shipping.id", shipping.ID))

	if err := s.publisher.Publish(ctx, config.ShippingStatusTopic, shipping.ID, shipping.Snapshot()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "shipping created")
	s.logger.Info("🚚 Shipping created",
		zap.String("order_id", order.ID),
		zap.String("shipping_id", shipping.ID),
		zap.String("status", string(shipping.Status)),
	)
	return nil
}

func (s *Service) newShipping(order domain.OrderEvent) *domain.Shipping {
	shipping := &domain.Shipping{
		ID:      s.newID(),
		OrderID: order.ID,
		Status:  domain.ShippingPending,
	}
	for _, item := range order.Items {
		shipping.Items = append(shipping.Items, domain.ShippingItem{
			ID:         s.newID(),
			ShippingID: shipping.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
		})
	}
	return shipping
}

// UpdateShippingStatus moves a shipment to status and republishes it. The
// published snapshot is the record as looked up, with the new status.
func (s *Service) UpdateShippingStatus(ctx context.Context, id, status string) (*domain.ShippingStatusEvent, error) {
	ctx, span := s.tracer.Start(ctx, "update_shipping_status")
	defer span.End()

	span.SetAttributes(
		attribute.String("shipping.id", id),
		attribute.String("shipping.requested_status", status),
	)

	next, err := domain.ParseShippingStatus(status)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	shipping, err := s.store.FindByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !shipping.Status.CanAdvanceTo(next) {
		err := fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, shipping.Status, next)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.store.UpdateStatus(ctx, id, next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("update shipping %s: %w", id, err)
	}
	previous := shipping.Status
	shipping.Status = next
	metrics.ShippingTransitions.WithLabelValues(string(next)).Inc()

	snapshot := shipping.Snapshot()
	if err := s.publisher.Publish(ctx, config.ShippingStatusTopic, shipping.ID, snapshot); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "shipping status updated")
	s.logger.Info("📦 Shipping status updated",
		zap.String("shipping_id", id),
		zap.String("order_id", shipping.OrderID),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
	)
	return &snapshot, nil
}

// GetShipping returns the current snapshot of a shipment.
func (s *Service) GetShipping(ctx context.Context, id string) (*domain.ShippingStatusEvent, error) {
	shipping, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	snapshot := shipping.Snapshot()
	return &snapshot, nil
}
