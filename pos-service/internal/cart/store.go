package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_pos/pos-service/internal/cache"
	"github.com/fjod/go_pos/pos-service/internal/catalog"
	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/fjod/go_pos/pos-service/internal/events"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrOutOfStock       = errors.New("product out of stock")
	ErrLineNotFound     = errors.New("product is not in the cart")
	ErrMerchantRequired = errors.New("merchant id is required")
)

const cacheTimeout = time.Second

// ProductLookup resolves barcodes for scans.
type ProductLookup interface {
	Resolve(ctx context.Context, barcode string) (*domain.Product, error)
}

// Store holds one active cart per merchant. All mutations of a merchant's cart
// are serialized by that merchant's lock; different merchants never contend.
type Store struct {
	lookup    ProductLookup
	cache     cache.CartCache
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	sfg     singleflight.Group // one cache load per merchant at a time

	abandonAfter  time.Duration
	sweepInterval time.Duration
	stopJanitor   chan struct{}
	wg            sync.WaitGroup
}

type entry struct {
	sem     chan struct{}
	current atomic.Pointer[domain.Cart] // nil until loaded; replaced, never mutated
	retired bool                        // set by prune while holding sem
}

func (e *entry) lock(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("acquire cart lock: %w", ctx.Err())
	}
}

func (e *entry) tryLock() bool {
	select {
	case e.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *entry) unlock() {
	<-e.sem
}

type Option func(*Store)

func WithCache(c cache.CartCache) Option {
	return func(s *Store) { s.cache = c }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithAbandonment clears carts left untouched for longer than after, checking
// every interval.
func WithAbandonment(after, interval time.Duration) Option {
	return func(s *Store) {
		s.abandonAfter = after
		s.sweepInterval = interval
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(lookup ProductLookup, opts ...Option) *Store {
	s := &Store{
		lookup:      lookup,
		log:         zap.NewNop(),
		now:         time.Now,
		entries:     make(map[string]*entry),
		stopJanitor: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	if s.abandonAfter > 0 && s.sweepInterval > 0 {
		s.wg.Add(1)
		go s.janitorLoop()
	}
	return s
}

// Close stops the abandonment janitor.
func (s *Store) Close() {
	select {
	case <-s.stopJanitor:
	default:
		close(s.stopJanitor)
	}
	s.wg.Wait()
}

// lockEntry locks the merchant's live entry. An entry pruned while the caller
// waited is skipped in favour of its replacement.
func (s *Store) lockEntry(ctx context.Context, merchantID string) (*entry, error) {
	for {
		e := s.entry(merchantID)
		if err := e.lock(ctx); err != nil {
			return nil, err
		}
		if !e.retired {
			return e, nil
		}
		e.unlock()
	}
}

func (s *Store) entry(merchantID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[merchantID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		s.entries[merchantID] = e
	}
	return e
}

// load returns the merchant's current cart, rehydrating it from the cache on
// first access after a restart. A transient cache failure yields an empty cart
// that is not kept, so the next access reads the cache again.
func (s *Store) load(ctx context.Context, merchantID string, e *entry) *domain.Cart {
	if c := e.current.Load(); c != nil {
		return c
	}

	v, _, _ := s.sfg.Do(merchantID, func() (interface{}, error) {
		if c := e.current.Load(); c != nil {
			return c, nil
		}
		c, settled := s.fromCache(ctx, merchantID)
		if !settled {
			return c, nil
		}
		if !e.current.CompareAndSwap(nil, c) {
			c = e.current.Load()
		}
		return c, nil
	})
	return v.(*domain.Cart)
}

// fromCache reads the mirrored cart. settled is false when the answer may
// change on retry. The read is detached from the caller so that one cancelled
// request cannot decide the outcome for every caller sharing the load.
func (s *Store) fromCache(ctx context.Context, merchantID string) (c *domain.Cart, settled bool) {
	if s.cache == nil {
		return domain.NewCart(merchantID), true
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()

	c, err := s.cache.Get(cctx, merchantID)
	switch {
	case err == nil:
		s.log.Info("cart restored from cache", zap.String("merchant_id", merchantID), zap.Int("lines", len(c.Lines)))
		return c, true
	case errors.Is(err, cache.ErrCacheMiss):
		return domain.NewCart(merchantID), true
	case errors.Is(err, cache.ErrUnusableEntry):
		s.log.Warn("discarding cached cart", zap.String("merchant_id", merchantID), zap.Error(err))
		return domain.NewCart(merchantID), true
	default:
		s.log.Warn("cache get error", zap.String("merchant_id", merchantID), zap.Error(err))
		return domain.NewCart(merchantID), false
	}
}

// commit publishes next as the merchant's cart and mirrors it to the cache.
// Callers hold the merchant lock.
func (s *Store) commit(ctx context.Context, e *entry, next *domain.Cart) {
	e.current.Store(next)
	if s.cache == nil {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()

	var err error
	if next.IsEmpty() {
		err = s.cache.Delete(cctx, next.MerchantID)
	} else {
		err = s.cache.Set(cctx, next.MerchantID, next)
	}
	if err != nil {
		s.log.Warn("cache write error", zap.String("merchant_id", next.MerchantID), zap.Error(err))
	}
}

func (s *Store) publish(t domain.EventType, merchantID string, payload any) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(domain.Event{Type: t, MerchantID: merchantID, At: s.now().UTC(), Payload: payload})
}

// mutate runs fn on a private copy of the merchant's cart under the merchant
// lock and commits the result when fn succeeds.
func (s *Store) mutate(ctx context.Context, merchantID string, fn func(c *domain.Cart) (domain.EventType, string, error)) (*domain.Cart, error) {
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}
	e, err := s.lockEntry(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	defer e.unlock()

	next := s.load(ctx, merchantID, e).Clone()
	eventType, barcode, err := fn(next)
	if err != nil {
		return nil, err
	}
	next.Recalculate(s.now().UTC())
	s.commit(ctx, e, next)

	// Still under the lock so event order matches mutation order.
	s.publish(eventType, merchantID, domain.CartEventPayload{Barcode: barcode, Cart: next.Clone()})
	return next.Clone(), nil
}

// Scan adds one unit of the product with the given barcode.
func (s *Store) Scan(ctx context.Context, merchantID, barcode string) (*domain.Cart, error) {
	return s.mutate(ctx, merchantID, func(c *domain.Cart) (domain.EventType, string, error) {
		p, err := s.lookup.Resolve(ctx, barcode)
		if err != nil {
			return "", "", err
		}

		idx := c.FindLine(barcode)
		want := 1
		if idx >= 0 {
			want = c.Lines[idx].Quantity + 1
		}
		if p.StockQuantity < want {
			return "", "", fmt.Errorf("%w: %s has %d in stock", ErrOutOfStock, barcode, p.StockQuantity)
		}

		if idx >= 0 {
			c.Lines[idx].Quantity = want
		} else {
			c.Lines = append(c.Lines, domain.CartLine{
				ProductID: p.ID,
				Barcode:   p.Barcode,
				Name:      p.Name,
				UnitPrice: p.UnitPrice,
				Quantity:  1,
			})
		}
		return domain.EventScan, barcode, nil
	})
}

// Remove takes one unit of the product off the cart, dropping the line at zero.
func (s *Store) Remove(ctx context.Context, merchantID, barcode string) (*domain.Cart, error) {
	if barcode == "" {
		return nil, catalog.ErrInvalidBarcode
	}
	return s.mutate(ctx, merchantID, func(c *domain.Cart) (domain.EventType, string, error) {
		idx := c.FindLine(barcode)
		if idx < 0 {
			return "", "", ErrLineNotFound
		}
		c.Lines[idx].Quantity--
		if c.Lines[idx].Quantity == 0 {
			c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
		}
		return domain.EventRemove, barcode, nil
	})
}

// Clear empties the merchant's cart.
func (s *Store) Clear(ctx context.Context, merchantID string) (*domain.Cart, error) {
	return s.mutate(ctx, merchantID, func(c *domain.Cart) (domain.EventType, string, error) {
		c.Lines = []domain.CartLine{}
		return domain.EventClear, "", nil
	})
}

// Summary returns the merchant's cart as of the last completed mutation. A
// merchant without a cart gets an empty one.
func (s *Store) Summary(ctx context.Context, merchantID string) (*domain.Cart, error) {
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}
	e := s.entry(merchantID)
	return s.load(ctx, merchantID, e).Clone(), nil
}
