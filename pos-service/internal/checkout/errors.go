package checkout

import (
	"errors"
	"fmt"

	"github.com/fjod/go_pos/pos-service/internal/domain"
)

var (
	ErrEmptyCart              = errors.New("cart is empty, nothing to checkout")
	ErrInvalidPaymentMethod   = errors.New("invalid payment method")
	ErrStockChanged           = errors.New("stock changed since the item was scanned")
	ErrPaymentDeclined        = errors.New("payment declined")
	ErrPostPaymentPersistence = errors.New("payment captured but order could not be saved")
)

// StockChangedError names the cart line that can no longer be fulfilled.
type StockChangedError struct {
	Line      domain.CartLine
	Available int
}

func (e *StockChangedError) Error() string {
	return fmt.Sprintf("stock changed for %s (%s): want %d, available %d",
		e.Line.Barcode, e.Line.Name, e.Line.Quantity, e.Available)
}

func (e *StockChangedError) Unwrap() error {
	return ErrStockChanged
}

// PaymentDeclinedError covers refusals, transport errors and timeouts alike.
type PaymentDeclinedError struct {
	Reason string
	Err    error
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Reason)
}

func (e *PaymentDeclinedError) Unwrap() []error {
	return []error{ErrPaymentDeclined, e.Err}
}

// PostPaymentPersistenceError carries the paid order so it can be reconciled.
type PostPaymentPersistenceError struct {
	Order *domain.Order
	Err   error
}

func (e *PostPaymentPersistenceError) Error() string {
	return fmt.Sprintf("order %s paid with %s but not persisted: %v", e.Order.ID, e.Order.PaymentRef, e.Err)
}

func (e *PostPaymentPersistenceError) Unwrap() []error {
	return []error{ErrPostPaymentPersistence, e.Err}
}
