package http

import (
	"context"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/fjod/go_pos/pos-service/internal/orders"
	"github.com/google/uuid"
)

// --- Mocks ---

type CartServiceMock struct {
	cart         *domain.Cart
	err          error
	lastMerchant string
	lastBarcode  string
}

func (m *CartServiceMock) Scan(_ context.Context, merchantID, barcode string) (*domain.Cart, error) {
	m.lastMerchant, m.lastBarcode = merchantID, barcode
	return m.cart, m.err
}

func (m *CartServiceMock) Remove(_ context.Context, merchantID, barcode string) (*domain.Cart, error) {
	m.lastMerchant, m.lastBarcode = merchantID, barcode
	return m.cart, m.err
}

func (m *CartServiceMock) Clear(_ context.Context, merchantID string) (*domain.Cart, error) {
	m.lastMerchant = merchantID
	return m.cart, m.err
}

func (m *CartServiceMock) Summary(_ context.Context, merchantID string) (*domain.Cart, error) {
	m.lastMerchant = merchantID
	return m.cart, m.err
}

type CheckoutMock struct {
	order      *domain.Order
	err        error
	lastMethod domain.PaymentMethod
}

func (m *CheckoutMock) Checkout(_ context.Context, _ string, method domain.PaymentMethod) (*domain.Order, error) {
	m.lastMethod = method
	return m.order, m.err
}

type AnalyticsMock struct {
	perMerchant map[string]domain.AnalyticsSnapshot
	global      domain.AnalyticsSnapshot
}

func (m AnalyticsMock) Snapshot(merchantID string) domain.AnalyticsSnapshot {
	if s, ok := m.perMerchant[merchantID]; ok {
		return s
	}
	return domain.NewAnalyticsSnapshot()
}

func (m AnalyticsMock) Global() domain.AnalyticsSnapshot {
	return m.global
}

type OrdersMock struct {
	orders []*domain.Order
	err    error
}

func (m OrdersMock) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, orders.ErrOrderNotFound
}

func (m OrdersMock) ListOrdersByMerchant(_ context.Context, merchantID string, _ int) ([]*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Order
	for _, o := range m.orders {
		if o.MerchantID == merchantID {
			out = append(out, o)
		}
	}
	return out, nil
}
