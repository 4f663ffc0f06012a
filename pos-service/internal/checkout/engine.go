package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_pos/pos-service/internal/cart"
	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/fjod/go_pos/pos-service/internal/payment"
	"go.uber.org/zap"
)

// StockKeeper is the catalog surface checkout needs.
type StockKeeper interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
	Decrement(ctx context.Context, productID string, qty int) error
	Restock(ctx context.Context, productID string, qty int) error
}

type OrderWriter interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
}

type SalesRecorder interface {
	Record(order *domain.Order)
}

// Observer receives checkout outcomes, e.g. for metrics.
type Observer interface {
	CheckoutOutcome(outcome string)
	PostPaymentFailed()
}

type Config struct {
	PaymentTimeout time.Duration
	PersistTimeout time.Duration
	// ValidationConcurrency bounds parallel stock lookups per checkout.
	ValidationConcurrency int
}

func DefaultConfig() Config {
	return Config{
		PaymentTimeout:        10 * time.Second,
		PersistTimeout:        5 * time.Second,
		ValidationConcurrency: 8,
	}
}

type Engine struct {
	carts     *cart.Store
	stock     StockKeeper
	payments  payment.Processor
	orders    OrderWriter
	analytics SalesRecorder
	observer  Observer
	cfg       Config
	log       *zap.Logger
	now       func() time.Time
}

func NewEngine(
	carts *cart.Store,
	stock StockKeeper,
	payments payment.Processor,
	orders OrderWriter,
	analytics SalesRecorder,
	cfg Config,
	log *zap.Logger,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = def.PaymentTimeout
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = def.PersistTimeout
	}
	if cfg.ValidationConcurrency <= 0 {
		cfg.ValidationConcurrency = def.ValidationConcurrency
	}
	return &Engine{
		carts:     carts,
		stock:     stock,
		payments:  payments,
		orders:    orders,
		analytics: analytics,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

func (e *Engine) WithObserver(o Observer) *Engine {
	e.observer = o
	return e
}

func (e *Engine) outcome(name string) {
	if e.observer != nil {
		e.observer.CheckoutOutcome(name)
	}
}

// Checkout turns the merchant's cart into a paid, persisted order. The cart
// stays locked for the whole sequence, so no scan or removal can slip in
// between validation and clearing.
func (e *Engine) Checkout(ctx context.Context, merchantID string, method domain.PaymentMethod) (*domain.Order, error) {
	method, err := domain.ParsePaymentMethod(string(method))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPaymentMethod, err)
	}

	sess, err := e.carts.Acquire(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	snapshot := sess.Cart()
	if snapshot.IsEmpty() {
		e.outcome("empty_cart")
		return nil, ErrEmptyCart
	}

	log := e.log.With(zap.String("merchant_id", merchantID), zap.String("method", string(method)))

	// Past this point a disconnecting terminal must not abort payment or
	// persistence halfway.
	work := context.WithoutCancel(ctx)

	if err := e.validateStock(work, snapshot); err != nil {
		e.outcome("stock_changed")
		log.Info("checkout rejected", zap.Error(err))
		return nil, err
	}

	reserved, err := e.reserve(work, snapshot)
	if err != nil {
		e.outcome("stock_changed")
		log.Info("stock reservation failed", zap.Error(err))
		return nil, err
	}

	order := domain.NewOrder(snapshot, method, "", e.now())
	log = log.With(zap.String("order_id", order.ID.String()))

	result, err := e.charge(work, order)
	if err != nil {
		e.release(work, reserved, log)
		e.outcome("payment_declined")
		log.Warn("payment declined", zap.String("total", order.Total.String()), zap.Error(err))
		return nil, err
	}
	order.PaymentRef = result.PaymentRef

	persistCtx, cancel := context.WithTimeout(work, e.cfg.PersistTimeout)
	err = e.orders.CreateOrder(persistCtx, order)
	cancel()
	if err != nil {
		// Money has moved. Clearing the cart keeps the terminal from charging
		// the same basket twice; reconciliation works from this log line.
		sess.Clear(work)
		e.outcome("post_payment_failure")
		if e.observer != nil {
			e.observer.PostPaymentFailed()
		}
		log.Error("POST-PAYMENT PERSISTENCE FAILURE: order paid but not saved",
			zap.String("payment_ref", order.PaymentRef),
			zap.String("total", order.Total.String()),
			zap.Any("order", order),
			zap.Error(err))
		return nil, &PostPaymentPersistenceError{Order: order, Err: err}
	}

	if e.analytics != nil {
		e.analytics.Record(order)
	}
	sess.Clear(work)
	sess.Publish(domain.EventCheckout, domain.CheckoutEventPayload{
		OrderID:       order.ID.String(),
		Total:         order.Total.String(),
		PaymentMethod: order.PaymentMethod,
		ItemCount:     snapshot.ItemCount(),
	})

	e.outcome("success")
	log.Info("checkout completed",
		zap.String("payment_ref", order.PaymentRef),
		zap.String("total", order.Total.String()),
		zap.Int("lines", len(order.Lines)))
	return order, nil
}

func (e *Engine) charge(ctx context.Context, order *domain.Order) (*payment.ChargeResult, error) {
	payCtx, cancel := context.WithTimeout(ctx, e.cfg.PaymentTimeout)
	defer cancel()

	result, err := e.payments.Charge(payCtx, payment.ChargeRequest{
		ReferenceID: order.ID.String(),
		MerchantID:  order.MerchantID,
		Amount:      order.Total,
		Method:      order.PaymentMethod,
	})
	if err == nil {
		return result, nil
	}

	var declined *payment.DeclinedError
	switch {
	case errors.As(err, &declined):
		return nil, &PaymentDeclinedError{Reason: declined.Reason, Err: err}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(payCtx.Err(), context.DeadlineExceeded):
		return nil, &PaymentDeclinedError{Reason: "payment timed out", Err: err}
	default:
		return nil, &PaymentDeclinedError{Reason: "payment processor unavailable", Err: err}
	}
}
