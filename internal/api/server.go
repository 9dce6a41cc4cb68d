package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"fulfillmentservice/internal/config"
	"fulfillmentservice/internal/platform/metrics"
	"fulfillmentservice/internal/platform/observability"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// NewRouter registers every route behind the Prometheus middleware.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.PrometheusMiddleware(config.ServiceName))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/orders", h.createOrder)
	router.GET("/orders/:id", h.getOrder)
	router.PUT("/inventory/:productId", h.setStock)
	router.GET("/shippings/:id", h.getShipping)
	router.PATCH("/shippings/:id/status", h.updateShippingStatus)

	return router
}

// Server runs the HTTP API until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger observability.Logger
}

// NewServer wraps handler with request tracing and binds it to addr.
func NewServer(addr string, handler http.Handler, logger observability.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      otelhttp.NewHandler(handler, "http-server"),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv.BaseContext = func(_ net.Listener) context.Context { return ctx }

	srvErr := make(chan error, 1)
	go func() {
		s.logger.Info("🌐 Starting HTTP server", zap.String("address", s.srv.Addr))
		srvErr <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server graceful shutdown failed", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP server shutdown complete")
	return nil
}
