package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "CASH"
	PaymentCard PaymentMethod = "CARD"
	PaymentUPI  PaymentMethod = "UPI"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case PaymentCash, PaymentCard, PaymentUPI:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported payment method %q", s)
	}
}

// Order is immutable once created.
type Order struct {
	ID            uuid.UUID       `json:"id"`
	MerchantID    string          `json:"merchantId"`
	Lines         []CartLine      `json:"lines"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Total         decimal.Decimal `json:"total"`
	PaymentRef    string          `json:"paymentRef"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewOrder builds an order from a cart snapshot.
func NewOrder(cart *Cart, method PaymentMethod, paymentRef string, now time.Time) *Order {
	lines := make([]CartLine, len(cart.Lines))
	copy(lines, cart.Lines)
	return &Order{
		ID:            uuid.New(),
		MerchantID:    cart.MerchantID,
		Lines:         lines,
		PaymentMethod: method,
		Total:         cart.Subtotal,
		PaymentRef:    paymentRef,
		CreatedAt:     now.UTC(),
	}
}
