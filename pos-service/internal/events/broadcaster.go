package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultQueueSize = 64

// Sink receives every published event after subscribers. Offer must not block.
type Sink interface {
	Offer(e domain.Event)
}

// Publisher is the part of the broadcaster the cart store and checkout engine use.
type Publisher interface {
	Publish(e domain.Event) domain.Event
}

type Option func(*Broadcaster)

func WithQueueSize(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

func WithSink(s Sink) Option {
	return func(b *Broadcaster) { b.sinks = append(b.sinks, s) }
}

// WithDropHook is called once per dropped event with the merchant id.
func WithDropHook(fn func(merchantID string)) Option {
	return func(b *Broadcaster) { b.onDrop = fn }
}

func WithLogger(log *zap.Logger) Option {
	return func(b *Broadcaster) {
		if log != nil {
			b.log = log
		}
	}
}

// Broadcaster fans events out to per-merchant topics. There is no replay: a
// subscriber only sees events published after it subscribed.
type Broadcaster struct {
	mu     sync.Mutex
	topics map[string]*topic

	queueSize int
	sinks     []Sink
	onDrop    func(merchantID string)
	log       *zap.Logger
	now       func() time.Time
}

type topic struct {
	mu         sync.Mutex
	seq        uint64
	subs       map[string]*Subscription
	lastActive time.Time
	retired    bool // removed from the map; set under both locks
}

func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		topics:    make(map[string]*topic),
		queueSize: DefaultQueueSize,
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Broadcaster) topic(merchantID string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[merchantID]
	if !ok {
		t = &topic{subs: make(map[string]*Subscription), lastActive: b.now()}
		b.topics[merchantID] = t
	}
	return t
}

// acquire returns the merchant's live topic with its lock held.
func (b *Broadcaster) acquire(merchantID string) *topic {
	for {
		t := b.topic(merchantID)
		t.mu.Lock()
		if !t.retired {
			return t
		}
		t.mu.Unlock()
	}
}

// Publish stamps the event with the merchant's next sequence number and hands
// it to every subscriber and sink. It never blocks on a slow consumer.
func (b *Broadcaster) Publish(e domain.Event) domain.Event {
	if e.At.IsZero() {
		e.At = b.now().UTC()
	}
	// Sequence assignment and delivery share the topic lock so every
	// subscriber observes sequences in increasing order.
	t := b.acquire(e.MerchantID)
	defer t.mu.Unlock()

	t.lastActive = b.now()
	t.seq++
	e.Sequence = t.seq
	for _, s := range t.subs {
		if s.offer(e) && b.onDrop != nil {
			b.onDrop(e.MerchantID)
		}
	}
	for _, sink := range b.sinks {
		sink.Offer(e)
	}
	return e
}

func (b *Broadcaster) Subscribe(merchantID string) *Subscription {
	s := &Subscription{
		ID:         uuid.NewString(),
		MerchantID: merchantID,
		ch:         make(chan domain.Event, b.queueSize),
	}
	s.unsubscribe = func() { b.unsubscribe(s) }

	t := b.acquire(merchantID)
	t.subs[s.ID] = s
	t.lastActive = b.now()
	s.topic = t
	t.mu.Unlock()

	b.log.Debug("subscriber attached", zap.String("merchant_id", merchantID), zap.String("subscriber_id", s.ID))
	return s
}

func (b *Broadcaster) unsubscribe(s *Subscription) {
	// A topic with subscribers is never pruned, so s.topic is still live.
	t := s.topic
	t.mu.Lock()
	delete(t.subs, s.ID)
	t.lastActive = b.now()
	close(s.ch)
	t.mu.Unlock()

	b.log.Debug("subscriber detached",
		zap.String("merchant_id", s.MerchantID),
		zap.String("subscriber_id", s.ID),
		zap.Uint64("dropped", s.Dropped()))
}

// SubscriberCount reports active subscribers for a merchant.
func (b *Broadcaster) SubscriberCount(merchantID string) int {
	b.mu.Lock()
	t, ok := b.topics[merchantID]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// PruneIdle drops topics that have no subscribers and saw no activity for
// idleFor. A pruned merchant's sequence numbers start again from 1, the same
// as after a restart.
func (b *Broadcaster) PruneIdle(idleFor time.Duration) int {
	cutoff := b.now().Add(-idleFor)

	b.mu.Lock()
	defer b.mu.Unlock()

	pruned := 0
	for merchantID, t := range b.topics {
		t.mu.Lock()
		if len(t.subs) == 0 && t.lastActive.Before(cutoff) {
			t.retired = true
			delete(b.topics, merchantID)
			pruned++
		}
		t.mu.Unlock()
	}
	if pruned > 0 {
		b.log.Debug("idle topics pruned", zap.Int("count", pruned))
	}
	return pruned
}

// PruneEvery runs PruneIdle on interval until ctx is done.
func (b *Broadcaster) PruneEvery(ctx context.Context, idleFor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.PruneIdle(idleFor)
		}
	}
}

func (b *Broadcaster) topicCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}

type Subscription struct {
	ID         string
	MerchantID string

	ch          chan domain.Event
	topic       *topic
	dropped     atomic.Uint64
	closeOnce   sync.Once
	unsubscribe func()
}

// Events is closed after Close.
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscription) Close() {
	s.closeOnce.Do(s.unsubscribe)
}

// offer enqueues e, evicting the oldest queued event when the queue is full.
// Callers hold the topic lock, so there is a single sender. Reports whether an
// event was dropped.
func (s *Subscription) offer(e domain.Event) bool {
	dropped := false
	for {
		select {
		case s.ch <- e:
			return dropped
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
			dropped = true
		default:
		}
	}
}
