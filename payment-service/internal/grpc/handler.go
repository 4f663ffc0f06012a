package grpc

import (
	"context"
	"math/rand"
	"strings"

	"github.com/fjod/go_pos/payment-service/pkg/api"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type GetResponseStatus interface {
	GetStatus() (api.ChargeStatus, api.PaymentRefusal, string)
}

// RandomStatus approves ApprovalPercent of charges and refuses the rest with
// one of the known refusal reasons.
type RandomStatus struct {
	ApprovalPercent int
}

func (r RandomStatus) GetStatus() (api.ChargeStatus, api.PaymentRefusal, string) {
	randomInt := rand.Intn(100) // [0, 100): ApprovalPercent=100 always approves
	return calcStatus(randomInt, r.ApprovalPercent)
}

func calcStatus(randomInt, approvalPercent int) (api.ChargeStatus, api.PaymentRefusal, string) {
	if randomInt < approvalPercent {
		return api.ChargeStatusSuccess, "", ""
	}
	otherReason := randomInt - approvalPercent
	if otherReason == 0 || otherReason >= len(api.KnownRefusals) {
		return api.ChargeStatusFailed, api.RefusalUnknown, "unknown reason"
	}

	return api.ChargeStatusFailed, api.KnownRefusals[otherReason], ""
}

type PaymentServiceServer struct {
	status GetResponseStatus
	log    *zap.Logger
}

func NewPaymentServiceServer(s GetResponseStatus, log *zap.Logger) *PaymentServiceServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentServiceServer{
		status: s,
		log:    log,
	}
}

// Charge always approves cash; card and UPI go through the status source.
func (s *PaymentServiceServer) Charge(_ context.Context, r *api.ChargeRequest) (*api.ChargeResponse, error) {
	if r.ReferenceID == "" {
		return nil, status.Error(codes.InvalidArgument, "reference_id is required")
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, status.Errorf(codes.InvalidArgument, "amount must be a positive decimal, got %q", r.Amount)
	}

	method := strings.ToUpper(r.Method)
	var charge api.ChargeStatus
	var refusalKnown api.PaymentRefusal
	var refusalOther string
	switch method {
	case "CASH":
		charge = api.ChargeStatusSuccess
	case "CARD", "UPI":
		charge, refusalKnown, refusalOther = s.status.GetStatus()
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unsupported payment method %q", r.Method)
	}

	resp := &api.ChargeResponse{
		Status:      charge,
		ReferenceID: r.ReferenceID,
	}
	if charge == api.ChargeStatusSuccess {
		resp.PaymentID = "PAY-" + uuid.NewString()
	} else if refusalOther == "" {
		resp.KnownReason = refusalKnown
	} else {
		resp.OtherReason = refusalOther
	}

	s.log.Info("charge processed",
		zap.String("reference_id", r.ReferenceID),
		zap.String("merchant_id", r.MerchantID),
		zap.String("method", method),
		zap.String("amount", amount.String()),
		zap.String("status", string(resp.Status)),
		zap.String("payment_id", resp.PaymentID))
	return resp, nil
}
