package analytics

import (
	"sync"

	"github.com/fjod/go_pos/pos-service/internal/domain"
)

// Recorder observes every order folded into the aggregator, e.g. to mirror
// totals into Prometheus.
type Recorder interface {
	RecordSale(method string, amount float64)
}

// Aggregator keeps cumulative in-process sales counters per merchant and
// across all merchants. Counters only grow.
type Aggregator struct {
	mu        sync.RWMutex
	merchants map[string]*domain.AnalyticsSnapshot
	global    domain.AnalyticsSnapshot
	recorder  Recorder
}

func NewAggregator(recorder Recorder) *Aggregator {
	return &Aggregator{
		merchants: make(map[string]*domain.AnalyticsSnapshot),
		global:    domain.NewAnalyticsSnapshot(),
		recorder:  recorder,
	}
}

func (a *Aggregator) Record(order *domain.Order) {
	a.mu.Lock()
	s, ok := a.merchants[order.MerchantID]
	if !ok {
		fresh := domain.NewAnalyticsSnapshot()
		s = &fresh
		a.merchants[order.MerchantID] = s
	}
	s.Add(order)
	a.global.Add(order)
	a.mu.Unlock()

	if a.recorder != nil {
		a.recorder.RecordSale(string(order.PaymentMethod), order.Total.InexactFloat64())
	}
}

// Snapshot returns the merchant's counters; zeros for a merchant with no sales.
func (a *Aggregator) Snapshot(merchantID string) domain.AnalyticsSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if s, ok := a.merchants[merchantID]; ok {
		return *s
	}
	return domain.NewAnalyticsSnapshot()
}

func (a *Aggregator) Global() domain.AnalyticsSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.global
}
