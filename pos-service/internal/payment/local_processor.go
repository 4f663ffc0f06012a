package payment

import (
	"context"
	"math/rand"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/google/uuid"
)

// LocalProcessor settles charges in-process for runs without a payment
// service. Cash is always approved; card and UPI are approved with
// ApprovalPercent probability.
type LocalProcessor struct {
	ApprovalPercent int
}

func (l LocalProcessor) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Method != domain.PaymentCash && rand.Intn(100) >= l.ApprovalPercent {
		return nil, &DeclinedError{Reason: "INSUFFICIENT_FUNDS"}
	}
	return &ChargeResult{PaymentRef: "LOCAL-" + uuid.NewString()}, nil
}
