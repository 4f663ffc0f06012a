package payment

import (
	"context"
	"fmt"

	"github.com/fjod/go_pos/payment-service/pkg/api"
	"github.com/fjod/go_pos/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Dial opens a client connection to the payment service.
func Dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to payment service: %w", err)
	}
	return conn, nil
}

type GRPCProcessor struct {
	client  api.PaymentServiceClient
	breaker *circuitbreaker.Breaker[*api.ChargeResponse]
	log     *zap.Logger
}

func NewGRPCProcessor(client api.PaymentServiceClient, cfg circuitbreaker.Config, log *zap.Logger) *GRPCProcessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &GRPCProcessor{
		client:  client,
		breaker: circuitbreaker.New[*api.ChargeResponse](cfg, isTransportFailure, log),
		log:     log,
	}
}

// isTransportFailure keeps request validation errors from tripping the breaker.
func isTransportFailure(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition:
		return false
	default:
		return true
	}
}

func (p *GRPCProcessor) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	resp, err := p.breaker.Execute(func() (*api.ChargeResponse, error) {
		return p.client.Charge(ctx, &api.ChargeRequest{
			ReferenceID: req.ReferenceID,
			MerchantID:  req.MerchantID,
			Amount:      req.Amount.String(),
			Method:      string(req.Method),
		})
	})
	if err != nil {
		p.log.Warn("payment call failed",
			zap.String("reference_id", req.ReferenceID),
			zap.String("breaker", p.breaker.State()),
			zap.Error(err))
		return nil, fmt.Errorf("charge payment: %w", err)
	}

	if resp.Status != api.ChargeStatusSuccess {
		return nil, &DeclinedError{Reason: resp.Reason()}
	}
	return &ChargeResult{PaymentRef: resp.PaymentID}, nil
}
