package domain

import "errors"

// Validation errors are returned synchronously to callers of creation and
// transition operations.
var (
	ErrEmptyOrder        = errors.New("order must have at least one item")
	ErrInvalidItem       = errors.New("order item must have a product id and a positive quantity")
	ErrInvalidQuantity   = errors.New("quantity must not be negative")
	ErrInvalidStatus     = errors.New("invalid shipping status")
	ErrInvalidTransition = errors.New("shipping status cannot move backwards")
)

// Not-found errors.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderItemNotFound = errors.New("order item not found")
	ErrShippingNotFound  = errors.New("shipping not found")
)

// Reservation errors.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyReserved   = errors.New("reservation already recorded")
)
