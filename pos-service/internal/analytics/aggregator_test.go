package analytics

import (
	"testing"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type spyRecorder struct {
	calls int
	total float64
}

func (s *spyRecorder) RecordSale(_ string, amount float64) {
	s.calls++
	s.total += amount
}

func order(merchantID string, method domain.PaymentMethod, total int64) *domain.Order {
	return &domain.Order{MerchantID: merchantID, PaymentMethod: method, Total: decimal.NewFromInt(total)}
}

func TestAggregator_RecordAndSnapshot(t *testing.T) {
	spy := &spyRecorder{}
	a := NewAggregator(spy)

	a.Record(order("m1", domain.PaymentCash, 500))
	a.Record(order("m1", domain.PaymentCard, 100))
	a.Record(order("m2", domain.PaymentUPI, 30))

	s := a.Snapshot("m1")
	assert.Equal(t, int64(2), s.TotalOrders)
	assert.True(t, s.TotalSales.Equal(decimal.NewFromInt(600)))
	assert.True(t, s.PaymentSplit.Cash.Equal(decimal.NewFromInt(500)))
	assert.True(t, s.PaymentSplit.Card.Equal(decimal.NewFromInt(100)))
	assert.True(t, s.PaymentSplit.UPI.IsZero())

	g := a.Global()
	assert.Equal(t, int64(3), g.TotalOrders)
	assert.True(t, g.TotalSales.Equal(decimal.NewFromInt(630)))

	assert.Equal(t, 3, spy.calls)
	assert.InDelta(t, 630.0, spy.total, 0.001)
}

func TestAggregator_UnknownMerchantIsZero(t *testing.T) {
	a := NewAggregator(nil)

	s := a.Snapshot("nobody")
	assert.Equal(t, int64(0), s.TotalOrders)
	assert.True(t, s.TotalSales.IsZero())
	assert.True(t, s.PaymentSplit.Cash.IsZero())
}

func TestAggregator_SnapshotIsACopy(t *testing.T) {
	a := NewAggregator(nil)
	a.Record(order("m1", domain.PaymentCash, 10))

	before := a.Snapshot("m1")
	a.Record(order("m1", domain.PaymentCash, 10))

	assert.Equal(t, int64(1), before.TotalOrders)
	assert.Equal(t, int64(2), a.Snapshot("m1").TotalOrders)
}

func TestAggregator_ConcurrentRecords(t *testing.T) {
	a := NewAggregator(nil)

	g := errgroup.Group{}
	for i := 0; i < 100; i++ {
		g.Go(func() error {
			a.Record(order("m1", domain.PaymentUPI, 1))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	s := a.Snapshot("m1")
	assert.Equal(t, int64(100), s.TotalOrders)
	assert.True(t, s.TotalSales.Equal(decimal.NewFromInt(100)))
	assert.True(t, s.PaymentSplit.UPI.Equal(decimal.NewFromInt(100)))
}
