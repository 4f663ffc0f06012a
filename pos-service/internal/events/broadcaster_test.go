package events

import (
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) domain.Event {
	t.Helper()
	select {
	case e, ok := <-s.Events():
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.Event{}
}

func TestPublish_FanOutToMerchantSubscribersOnly(t *testing.T) {
	b := NewBroadcaster()
	s1 := b.Subscribe("m1")
	s2 := b.Subscribe("m1")
	other := b.Subscribe("m2")
	defer s1.Close()
	defer s2.Close()
	defer other.Close()

	b.Publish(domain.Event{Type: domain.EventScan, MerchantID: "m1"})

	assert.Equal(t, domain.EventScan, receive(t, s1).Type)
	assert.Equal(t, domain.EventScan, receive(t, s2).Type)
	select {
	case e := <-other.Events():
		t.Fatalf("unexpected event for other merchant: %+v", e)
	default:
	}
}

func TestPublish_NoReplay(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(domain.Event{Type: domain.EventScan, MerchantID: "m1"})

	s := b.Subscribe("m1")
	defer s.Close()
	b.Publish(domain.Event{Type: domain.EventRemove, MerchantID: "m1"})

	e := receive(t, s)
	assert.Equal(t, domain.EventRemove, e.Type)
	assert.Equal(t, uint64(2), e.Sequence)
}

func TestPublish_SequencePerMerchant(t *testing.T) {
	b := NewBroadcaster()

	assert.Equal(t, uint64(1), b.Publish(domain.Event{MerchantID: "m1"}).Sequence)
	assert.Equal(t, uint64(2), b.Publish(domain.Event{MerchantID: "m1"}).Sequence)
	assert.Equal(t, uint64(1), b.Publish(domain.Event{MerchantID: "m2"}).Sequence)
}

func TestPublish_SlowSubscriberDropsOldest(t *testing.T) {
	var dropped []string
	b := NewBroadcaster(WithQueueSize(2), WithDropHook(func(m string) { dropped = append(dropped, m) }))
	slow := b.Subscribe("m1")
	defer slow.Close()

	for i := 0; i < 5; i++ {
		b.Publish(domain.Event{Type: domain.EventScan, MerchantID: "m1"})
	}

	assert.Equal(t, uint64(3), slow.Dropped())
	assert.Len(t, dropped, 3)
	assert.Equal(t, uint64(4), receive(t, slow).Sequence)
	assert.Equal(t, uint64(5), receive(t, slow).Sequence)
}

func TestPublish_OrderPreservedUnderConcurrency(t *testing.T) {
	b := NewBroadcaster(WithQueueSize(1000))
	s := b.Subscribe("m1")
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(domain.Event{Type: domain.EventScan, MerchantID: "m1"})
			}
		}()
	}
	wg.Wait()

	var last uint64
	for i := 0; i < 500; i++ {
		e := receive(t, s)
		assert.Greater(t, e.Sequence, last)
		last = e.Sequence
	}
	assert.Equal(t, uint64(500), last)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	b := NewBroadcaster()
	s := b.Subscribe("m1")
	assert.Equal(t, 1, b.SubscriberCount("m1"))

	s.Close()
	s.Close()

	_, ok := <-s.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount("m1"))

	b.Publish(domain.Event{MerchantID: "m1"})
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingSink) Offer(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestPublish_FeedsSinks(t *testing.T) {
	sink := &recordingSink{}
	b := NewBroadcaster(WithSink(sink))

	b.Publish(domain.Event{Type: domain.EventCheckout, MerchantID: "m1"})

	require.Len(t, sink.events, 1)
	assert.Equal(t, uint64(1), sink.events[0].Sequence)
	assert.False(t, sink.events[0].At.IsZero())
}

func TestPruneIdle(t *testing.T) {
	b := NewBroadcaster()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.Publish(domain.Event{MerchantID: "idle"})
	b.Publish(domain.Event{MerchantID: "idle"})
	watched := b.Subscribe("watched")
	defer watched.Close()
	b.Publish(domain.Event{MerchantID: "watched"})

	now = now.Add(time.Hour)
	b.Publish(domain.Event{MerchantID: "recent"})

	assert.Equal(t, 3, b.topicCount())
	assert.Equal(t, 1, b.PruneIdle(30*time.Minute))
	assert.Equal(t, 2, b.topicCount())
	assert.Equal(t, 1, b.SubscriberCount("watched"))

	assert.Equal(t, uint64(1), b.Publish(domain.Event{MerchantID: "idle"}).Sequence)
	assert.Equal(t, uint64(2), b.Publish(domain.Event{MerchantID: "recent"}).Sequence)
}

func TestPruneIdle_ClosedSubscriberLeavesNoTopic(t *testing.T) {
	b := NewBroadcaster()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	s := b.Subscribe("m1")
	now = now.Add(time.Hour)
	assert.Equal(t, 0, b.PruneIdle(time.Minute), "subscribed topic is kept")

	s.Close()
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, b.PruneIdle(time.Minute))
	assert.Equal(t, 0, b.SubscriberCount("m1"))
	assert.Equal(t, 0, b.topicCount())

	again := b.Subscribe("m1")
	defer again.Close()
	b.Publish(domain.Event{MerchantID: "m1"})
	assert.Equal(t, uint64(1), receive(t, again).Sequence)
}
