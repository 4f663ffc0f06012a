package cart

import (
	"context"
	"time"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"go.uber.org/zap"
)

// janitorLoop periodically clears carts nobody has touched for abandonAfter
// and forgets merchants left with an empty cart
func (s *Store) janitorLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.clearAbandoned()
			s.pruneEmpty()
		case <-s.stopJanitor:
			return
		}
	}
}

// clearAbandoned skips carts that are locked right now; a busy cart is not
// abandoned.
func (s *Store) clearAbandoned() int {
	s.mu.Lock()
	snapshot := make(map[string]*entry, len(s.entries))
	for id, e := range s.entries {
		snapshot[id] = e
	}
	s.mu.Unlock()

	cutoff := s.now().Add(-s.abandonAfter)
	cleared := 0
	for merchantID, e := range snapshot {
		c := e.current.Load()
		if c == nil || c.IsEmpty() || c.UpdatedAt.After(cutoff) {
			continue
		}
		if !e.tryLock() {
			continue
		}

		c = e.current.Load()
		if !e.retired && !c.IsEmpty() && !c.UpdatedAt.After(cutoff) {
			next := c.Clone()
			next.Reset(s.now().UTC())
			s.commit(context.Background(), e, next)
			s.publish(domain.EventClear, merchantID, domain.CartEventPayload{Cart: next.Clone()})
			s.log.Info("abandoned cart cleared",
				zap.String("merchant_id", merchantID),
				zap.Time("last_update", c.UpdatedAt),
				zap.Int("lines", len(c.Lines)))
			cleared++
		}
		e.unlock()
	}
	return cleared
}

// pruneEmpty forgets merchants whose cart is empty or never loaded and that
// nobody holds, so the entry map tracks active merchants only. A pruned
// merchant's next access starts from a fresh entry and the cache.
func (s *Store) pruneEmpty() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for merchantID, e := range s.entries {
		if !e.tryLock() {
			continue
		}
		if c := e.current.Load(); c == nil || c.IsEmpty() {
			e.retired = true
			delete(s.entries, merchantID)
			pruned++
		}
		e.unlock()
	}
	if pruned > 0 {
		s.log.Debug("idle cart entries pruned", zap.Int("count", pruned))
	}
	return pruned
}

func (s *Store) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
