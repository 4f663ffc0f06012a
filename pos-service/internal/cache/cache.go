package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_pos/pos-service/internal/domain"
)

// CartCache mirrors merchant carts so they survive a process restart.
type CartCache interface {
	// Get returns ErrCacheMiss when nothing is stored and ErrUnusableEntry
	// when the stored blob cannot be trusted. Any other error is transient.
	Get(ctx context.Context, merchantID string) (*domain.Cart, error)
	Set(ctx context.Context, merchantID string, cart *domain.Cart) error
	Delete(ctx context.Context, merchantID string) error
}

var (
	ErrCacheMiss     = errors.New("cache miss")
	ErrUnusableEntry = errors.New("cached cart is unusable")
)
