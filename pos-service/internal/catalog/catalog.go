package catalog

import (
	"context"
	"errors"

	"github.com/fjod/go_pos/pos-service/internal/domain"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidBarcode    = errors.New("barcode must not be empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// Store is the product catalog. Resolve and Get have no side effects; stock is
// only ever changed through Decrement and Restock.
type Store interface {
	// Resolve looks a product up by barcode.
	Resolve(ctx context.Context, barcode string) (*domain.Product, error)

	// Get looks a product up by id.
	Get(ctx context.Context, productID string) (*domain.Product, error)

	// Decrement atomically lowers stock by qty, failing with
	// ErrInsufficientStock when fewer than qty units remain.
	Decrement(ctx context.Context, productID string, qty int) error

	// Restock returns qty units to stock.
	Restock(ctx context.Context, productID string, qty int) error

	// Upsert inserts or replaces a product keyed by id.
	Upsert(ctx context.Context, p *domain.Product) error
}
