package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fulfillmentservice/internal/config"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Application holds all the components and manages the application lifecycle
type Application struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container *Container
	factory   *ServiceFactory
}

// NewApplication creates and fully initializes a new Application instance
func NewApplication(ctx context.Context) (*Application, error) {
	// Set up signal handling
	appCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	app := &Application{
		ctx:    appCtx,
		cancel: cancel,
	}

	// Initialize container (expensive singletons)
	container, err := NewContainer(app.ctx)
	if err != nil {
		cancel() // Clean up context if initialization fails
		return nil, err
	}
	app.container = container
	app.factory = NewServiceFactory(container)

	app.container.Logger().Info("Application initialized successfully",
		zap.Strings("roles", container.Config().Roles),
	)
	return app, nil
}

// Run starts every configured role and blocks until all of them stop. The
// first role to fail cancels the others.
func (app *Application) Run() error {
	cfg := app.container.Config()

	relay := app.factory.CreateRelay()
	inventoryService := app.factory.CreateInventoryService(relay)
	orderService := app.factory.CreateOrderService()
	shippingService := app.factory.CreateShippingService()

	g, ctx := errgroup.WithContext(app.ctx)

	if cfg.HasRole(config.RoleAPI) {
		server := app.factory.CreateHTTPServer(orderService, inventoryService, shippingService)
		g.Go(func() error { return server.Run(ctx) })
	}
	if cfg.HasRole(config.RoleInventory) {
		consumer := app.factory.CreateInventoryConsumer(inventoryService)
		g.Go(func() error { return consumer.Start(ctx) })
	}
	if cfg.HasRole(config.RoleOrder) {
		consumer := app.factory.CreateOrderConsumer(orderService)
		g.Go(func() error { return consumer.Start(ctx) })
	}
	if cfg.HasRole(config.RoleShipping) {
		consumer := app.factory.CreateShippingConsumer(shippingService)
		g.Go(func() error { return consumer.Start(ctx) })
	}
	if cfg.HasRole(config.RoleRelay) {
		g.Go(func() error { return relay.Run(ctx, cfg.OutboxInterval) })
	}

	return g.Wait()
}

// Shutdown gracefully shuts down all application components
func (app *Application) Shutdown() {
	if app.container != nil {
		app.container.Logger().Info("Starting application shutdown...")
	}

	// Cancel context
	if app.cancel != nil {
		app.cancel()
	}

	// Shutdown container
	if app.container != nil {
		app.container.Shutdown(context.Background())
	}
}
