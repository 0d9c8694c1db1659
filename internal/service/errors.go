package service

import (
	"errors"
	"fmt"

	"storefront/backend/internal/money"
	"storefront/backend/internal/store"
)

var (
	ErrRegisterClosed      = errors.New("register is closed")
	ErrRegisterAlreadyOpen = errors.New("register is already open")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientBalance = errors.New("insufficient register balance")
	ErrInvalidAmount       = money.ErrInvalidAmount
	ErrSaleLinkedEvent     = errors.New("cash event is linked to a sale")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrInvalidPhone        = errors.New("invalid phone number")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrForbidden           = errors.New("admin role required")
	ErrUpstreamWrite       = errors.New("store write failed")
)

// InsufficientStockError names the first cart line that cannot be served.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return store.ErrInsufficientStock
}

// UpstreamWriteError reports a store write that failed after earlier writes
// of the same operation had already landed. Nothing is rolled back.
type UpstreamWriteError struct {
	Step   string
	SaleID string
	Err    error
}

func (e *UpstreamWriteError) Error() string {
	if e.SaleID == "" {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s (sale %s): %v", e.Step, e.SaleID, e.Err)
}

func (e *UpstreamWriteError) Unwrap() []error {
	return []error{ErrUpstreamWrite, e.Err}
}
