package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for the not-found and precondition taxonomy. Handlers map
// these to user-facing messages at the API boundary.
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartEmpty        = errors.New("cart is empty")
	ErrCartItemNotFound = errors.New("item not found in cart")
	ErrOrderNotFound    = errors.New("order not found")
	ErrEmailTaken       = errors.New("email already in use")
	ErrAlreadyPaid      = errors.New("order is already paid")
	ErrNotPaid          = errors.New("order is not paid")
)

// InsufficientStockError carries the quantity still available so the message
// can tell the shopper how many units they can actually get.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available=%d, requested=%d",
		e.ProductID, e.Available, e.Requested)
}

// IsInsufficientStock unwraps err into an InsufficientStockError if it is one.
func IsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
