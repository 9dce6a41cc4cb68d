package api

import (
	"context"
	"errors"
	"net/http"

	"fulfillmentservice/internal/domain"
	"fulfillmentservice/internal/platform/observability"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OrderService is the synchronous order surface.
type OrderService interface {
	CreateOrder(ctx context.Context, items []domain.OrderEventItem) (*domain.OrderEvent, error)
	GetOrder(ctx context.Context, id string) (*domain.OrderEvent, error)
}

// InventoryService is the synchronous inventory surface.
type InventoryService interface {
	SetStock(ctx context.Context, productID string, quantity int) (*domain.Inventory, error)
}

// ShippingService is the synchronous shipping surface.
type ShippingService interface {
	GetShipping(ctx context.Context, id string) (*domain.ShippingStatusEvent, error)
	UpdateShippingStatus(ctx context.Context, id, status string) (*domain.ShippingStatusEvent, error)
}

// Handlers serves the fulfillment HTTP API.
type Handlers struct {
	orders    OrderService
	inventory InventoryService
	shippings ShippingService
	logger    observability.Logger
}

// NewHandlers creates the HTTP handlers.
func NewHandlers(orders OrderService, inventory InventoryService, shippings ShippingService, logger observability.Logger) *Handlers {
	return &Handlers{orders: orders, inventory: inventory, shippings: shippings, logger: logger}
}

type createOrderRequest struct {
	Items []domain.OrderEventItem `json:"items"`
}

type setStockRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type stockResponse struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handlers) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), req.Items)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handlers) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handlers) setStock(c *gin.Context) {
	var req setStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	inv, err := h.inventory.SetStock(c.Request.Context(), c.Param("productId"), *req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stockResponse{ProductID: inv.ProductID, Quantity: inv.Quantity})
}

func (h *Handlers) getShipping(c *gin.Context) {
	shipping, err := h.shippings.GetShipping(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, shipping)
}

func (h *Handlers) updateShippingStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	shipping, err := h.shippings.UpdateShippingStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, shipping)
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("❌ Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrInvalidItem),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrShippingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
