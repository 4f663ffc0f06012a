package checkout

import (
	"context"
	"sync"

	"github.com/fjod/go_pos/pos-service/internal/catalog"
	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/fjod/go_pos/pos-service/internal/payment"
	"github.com/google/uuid"
)

// MockProcessor implements payment.Processor with a scripted response
type MockProcessor struct {
	mu    sync.Mutex
	Fn    func(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error)
	Calls int
	Last  payment.ChargeRequest
}

func (m *MockProcessor) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	m.mu.Lock()
	m.Calls++
	m.Last = req
	fn := m.Fn
	m.mu.Unlock()

	if fn == nil {
		return &payment.ChargeResult{PaymentRef: "PAY-" + uuid.NewString()}, nil
	}
	return fn(ctx, req)
}

func (m *MockProcessor) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockOrderWriter records created orders or fails with Err
type MockOrderWriter struct {
	mu     sync.Mutex
	Err    error
	Orders []*domain.Order
}

func (m *MockOrderWriter) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Orders = append(m.Orders, order)
	return nil
}

// HookedStock wraps a MemoryStore and runs BeforeDecrement ahead of every
// decrement, to simulate a sale landing between validation and reservation.
type HookedStock struct {
	*catalog.MemoryStore
	BeforeDecrement func(productID string)
	Restocked       []string
}

func (h *HookedStock) Decrement(ctx context.Context, productID string, qty int) error {
	if h.BeforeDecrement != nil {
		h.BeforeDecrement(productID)
	}
	return h.MemoryStore.Decrement(ctx, productID, qty)
}

func (h *HookedStock) Restock(ctx context.Context, productID string, qty int) error {
	h.Restocked = append(h.Restocked, productID)
	return h.MemoryStore.Restock(ctx, productID, qty)
}

// MockObserver counts outcomes
type MockObserver struct {
	mu          sync.Mutex
	Outcomes    []string
	PostPayment int
}

func (m *MockObserver) CheckoutOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes = append(m.Outcomes, outcome)
}

func (m *MockObserver) PostPaymentFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostPayment++
}
