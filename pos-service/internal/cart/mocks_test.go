package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/go_pos/pos-service/internal/cache"
	"github.com/fjod/go_pos/pos-service/internal/domain"
)

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingPublisher) Publish(e domain.Event) domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Sequence = uint64(len(r.events) + 1)
	r.events = append(r.events, e)
	return e
}

func (r *recordingPublisher) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// brokenCache fails every call
type brokenCache struct {
	calls int
}

var errCacheDown = errors.New("redis: connection refused")

func (b *brokenCache) Get(context.Context, string) (*domain.Cart, error) {
	b.calls++
	return nil, errCacheDown
}

func (b *brokenCache) Set(context.Context, string, *domain.Cart) error {
	b.calls++
	return errCacheDown
}

func (b *brokenCache) Delete(context.Context, string) error {
	b.calls++
	return errCacheDown
}

// flakyCache fails the first failGets reads, then defers to the wrapped cache
type flakyCache struct {
	cache.CartCache
	mu       sync.Mutex
	failGets int
	gets     int
}

func (f *flakyCache) Get(ctx context.Context, merchantID string) (*domain.Cart, error) {
	f.mu.Lock()
	f.gets++
	fail := f.gets <= f.failGets
	f.mu.Unlock()
	if fail {
		return nil, errCacheDown
	}
	return f.CartCache.Get(ctx, merchantID)
}
