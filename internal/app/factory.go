package app

import (
	"fulfillmentservice/internal/api"
	"fulfillmentservice/internal/config"
	"fulfillmentservice/internal/eventproc"
	"fulfillmentservice/internal/inventory"
	"fulfillmentservice/internal/order"
	"fulfillmentservice/internal/outbox"
	"fulfillmentservice/internal/shipping"
)

// ServiceFactory creates business logic services with their dependencies
type ServiceFactory struct {
	container *Container
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(container *Container) *ServiceFactory {
	return &ServiceFactory{
		container: container,
	}
}

// CreateRelay creates the outbox relay publishing through the shared publisher
func (f *ServiceFactory) CreateRelay() *outbox.Relay {
	return outbox.NewRelay(f.container.DB(), f.container.Publisher(), f.container.Logger())
}

// CreateInventoryService creates a new inventory service instance
func (f *ServiceFactory) CreateInventoryService(relay *outbox.Relay) *inventory.Service {
	return inventory.NewService(inventory.NewGormStore(f.container.DB()), relay, f.container.Logger(), f.container.Tracer())
}

// CreateOrderService creates a new order service instance
func (f *ServiceFactory) CreateOrderService() *order.Service {
	return order.NewService(order.NewGormStore(f.container.DB()), f.container.Publisher(), f.container.Logger(), f.container.Tracer())
}

// CreateShippingService creates a new shipping service instance
func (f *ServiceFactory) CreateShippingService() *shipping.Service {
	return shipping.NewService(shipping.NewGormStore(f.container.DB()), f.container.Publisher(), f.container.Logger(), f.container.Tracer())
}

// CreateInventoryConsumer consumes OrderPlaced
func (f *ServiceFactory) CreateInventoryConsumer(svc *inventory.Service) *eventproc.ConsumerService {
	return newConsumer(f.container, "inventory", config.OrderPlacedTopic, config.InventoryGroupID, inventory.LockKey, svc.OnOrderPlaced)
}

// CreateOrderConsumer consumes StockReserved
func (f *ServiceFactory) CreateOrderConsumer(svc *order.Service) *eventproc.ConsumerService {
	return newConsumer(f.container, "order", config.StockReservedTopic, config.OrderGroupID, order.LockKey, svc.OnStockReserved)
}

// CreateShippingConsumer consumes OrderReadyForShipping
func (f *ServiceFactory) CreateShippingConsumer(svc *shipping.Service) *eventproc.ConsumerService {
	return newConsumer(f.container, "shipping", config.OrderReadyForShippingTopic, config.ShippingGroupID, shipping.LockKey, svc.OnOrderReadyForShipping)
}

// CreateHTTPServer creates the HTTP API server
func (f *ServiceFactory) CreateHTTPServer(orders *order.Service, stock *inventory.Service, shippings *shipping.Service) *api.Server {
	handlers := api.NewHandlers(orders, stock, shippings, f.container.Logger())
	return api.NewServer(f.container.Config().HTTPAddr, api.NewRouter(handlers), f.container.Logger())
}

func newConsumer[T any](
	c *Container,
	name, topic, groupID string,
	key eventproc.KeyFunc[T],
	handler eventproc.Handler[T],
) *eventproc.ConsumerService {
	reader := c.NewConsumer(topic, groupID)
	processor := eventproc.NewProcessor(topic, c.Locker(), reader, key, handler, c.Logger(), c.Tracer())
	return eventproc.NewConsumerService(name, reader, processor, c.Config().ConsumerConcurrency, c.Logger())
}
