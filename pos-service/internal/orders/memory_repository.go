package orders

import (
	"context"
	"sort"
	"sync"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu        sync.RWMutex
	orders    map[uuid.UUID]*domain.Order
	byPayment map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:    make(map[uuid.UUID]*domain.Order),
		byPayment: make(map[string]uuid.UUID),
	}
}

func (m *MemoryRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[order.ID]; ok {
		return ErrDuplicateOrder
	}
	if order.PaymentRef != "" {
		if _, ok := m.byPayment[order.PaymentRef]; ok {
			return ErrDuplicateOrder
		}
		m.byPayment[order.PaymentRef] = order.ID
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MemoryRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryRepository) ListOrdersByMerchant(_ context.Context, merchantID string, limit int) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Order
	for _, o := range m.orders {
		if o.MerchantID == merchantID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) Close() error {
	return nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Lines = make([]domain.CartLine, len(o.Lines))
	copy(cp.Lines, o.Lines)
	return &cp
}
