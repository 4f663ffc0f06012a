package cart

import (
	"context"

	"github.com/fjod/go_pos/pos-service/internal/domain"
)

// Session is exclusive access to one merchant's cart, held for the duration
// of a checkout. Scans and removals for that merchant wait until Release.
type Session struct {
	store      *Store
	entry      *entry
	merchantID string
	cart       *domain.Cart
	released   bool
}

// Acquire blocks until the merchant's cart is free or ctx is done.
func (s *Store) Acquire(ctx context.Context, merchantID string) (*Session, error) {
	if merchantID == "" {
		return nil, ErrMerchantRequired
	}
	e, err := s.lockEntry(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	c := s.load(ctx, merchantID, e)
	return &Session{store: s, entry: e, merchantID: merchantID, cart: c}, nil
}

func (ss *Session) MerchantID() string {
	return ss.merchantID
}

// Cart returns a copy of the held cart.
func (ss *Session) Cart() *domain.Cart {
	return ss.cart.Clone()
}

// Clear empties the held cart without emitting an event.
func (ss *Session) Clear(ctx context.Context) {
	next := ss.cart.Clone()
	next.Reset(ss.store.now().UTC())
	ss.store.commit(ctx, ss.entry, next)
	ss.cart = next
}

// Publish emits an event while the cart is still held, keeping it ordered
// with the cart's other events.
func (ss *Session) Publish(t domain.EventType, payload any) {
	ss.store.publish(t, ss.merchantID, payload)
}

// Release is safe to call more than once.
func (ss *Session) Release() {
	if ss.released {
		return
	}
	ss.released = true
	ss.entry.unlock()
}
