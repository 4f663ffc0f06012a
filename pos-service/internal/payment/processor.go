package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/shopspring/decimal"
)

var ErrDeclined = errors.New("payment declined")

// DeclinedError is a refusal reported by the processor, as opposed to a
// transport failure.
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Reason)
}

func (e *DeclinedError) Unwrap() error {
	return ErrDeclined
}

type ChargeRequest struct {
	ReferenceID string
	MerchantID  string
	Amount      decimal.Decimal
	Method      domain.PaymentMethod
}

type ChargeResult struct {
	PaymentRef string
}

// Processor captures funds. Any error means no money moved.
type Processor interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}
