package orders

import (
	"context"
	"errors"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order for this payment already exists")
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Repository durably records completed orders.
type Repository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// ListOrdersByMerchant returns the newest orders first.
	ListOrdersByMerchant(ctx context.Context, merchantID string, limit int) ([]*domain.Order, error)
	Close() error
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
