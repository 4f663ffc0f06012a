package cart

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_pos/pos-service/internal/cache"
	"github.com/fjod/go_pos/pos-service/internal/catalog"
	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *catalog.MemoryStore, *recordingPublisher) {
	t.Helper()
	products := catalog.NewMemoryStore(catalog.DemoProducts()...)
	pub := &recordingPublisher{}
	s := NewStore(products, append([]Option{WithPublisher(pub)}, opts...)...)
	t.Cleanup(s.Close)
	return s, products, pub
}

func TestScan_TwiceIncrementsLine(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Scan(ctx, "m1", "BC-100")
	require.NoError(t, err)
	c, err := s.Scan(ctx, "m1", "BC-100")
	require.NoError(t, err)

	require.Len(t, c.Lines, 1)
	assert.Equal(t, 2, c.Lines[0].Quantity)
	assert.Equal(t, "p-100", c.Lines[0].ProductID)
	assert.True(t, c.Subtotal.Equal(decimal.NewFromInt(500)))
}

func TestScan_KeepsScanOrder(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	for _, bc := range []string{"BC-300", "BC-100", "BC-300", "BC-200"} {
		_, err := s.Scan(ctx, "m1", bc)
		require.NoError(t, err)
	}

	c, err := s.Summary(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 3)
	assert.Equal(t, "BC-300", c.Lines[0].Barcode)
	assert.Equal(t, "BC-100", c.Lines[1].Barcode)
	assert.Equal(t, "BC-200", c.Lines[2].Barcode)
	assert.True(t, c.Subtotal.Equal(decimal.RequireFromString("597.50")))
}

func TestScan_UnknownBarcode(t *testing.T) {
	s, _, pub := newTestStore(t)

	_, err := s.Scan(context.Background(), "m1", "BC-999")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Empty(t, pub.types())
}

func TestScan_OutOfStock(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Scan(ctx, "m1", "BC-500")
	assert.ErrorIs(t, err, ErrOutOfStock)

	for i := 0; i < 5; i++ {
		_, err := s.Scan(ctx, "m1", "BC-100")
		require.NoError(t, err)
	}
	_, err = s.Scan(ctx, "m1", "BC-100")
	assert.ErrorIs(t, err, ErrOutOfStock)

	c, err := s.Summary(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 5, c.Lines[0].Quantity)
	assert.True(t, c.Subtotal.Equal(decimal.NewFromInt(1250)))
}

func TestScan_PriceSnapshottedAtFirstScan(t *testing.T) {
	s, products, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Scan(ctx, "m1", "BC-100")
	require.NoError(t, err)

	require.NoError(t, products.Upsert(ctx, &domain.Product{
		ID: "p-100", Barcode: "BC-100", Name: "Basmati Rice 1kg", UnitPrice: decimal.NewFromInt(300), StockQuantity: 5,
	}))

	c, err := s.Scan(ctx, "m1", "BC-100")
	require.NoError(t, err)
	assert.True(t, c.Lines[0].UnitPrice.Equal(decimal.NewFromInt(250)))
	assert.True(t, c.Subtotal.Equal(decimal.NewFromInt(500)))
}

func TestScan_MerchantRequired(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, err := s.Scan(context.Background(), "", "BC-100")
	assert.ErrorIs(t, err, ErrMerchantRequired)
}

func TestRemove(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Remove(ctx, "m1", "BC-100")
	assert.ErrorIs(t, err, ErrLineNotFound)

	_, _ = s.Scan(ctx, "m1", "BC-100")
	_, _ = s.Scan(ctx, "m1", "BC-100")
	_, _ = s.Scan(ctx, "m1", "BC-200")

	c, err := s.Remove(ctx, "m1", "BC-100")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Lines[0].Quantity)
	assert.True(t, c.Subtotal.Equal(decimal.RequireFromString("399.50")))

	c, err = s.Remove(ctx, "m1", "BC-100")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "BC-200", c.Lines[0].Barcode)
	assert.True(t, c.Subtotal.Equal(decimal.RequireFromString("149.50")))

	_, err = s.Remove(ctx, "m1", "BC-100")
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestSummary_EmptyForUnknownMerchant(t *testing.T) {
	s, _, _ := newTestStore(t)

	c, err := s.Summary(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", c.MerchantID)
	assert.Empty(t, c.Lines)
	assert.NotNil(t, c.Lines)
	assert.True(t, c.Subtotal.IsZero())
}

func TestSummary_IsSnapshot(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	_, _ = s.Scan(ctx, "m1", "BC-100")

	c, err := s.Summary(ctx, "m1")
	require.NoError(t, err)
	c.Lines[0].Quantity = 42

	again, err := s.Summary(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Lines[0].Quantity)
}

func TestMerchantsAreIsolated(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, _ = s.Scan(ctx, "m1", "BC-100")
	_, _ = s.Scan(ctx, "m2", "BC-200")

	c1, _ := s.Summary(ctx, "m1")
	c2, _ := s.Summary(ctx, "m2")
	require.Len(t, c1.Lines, 1)
	require.Len(t, c2.Lines, 1)
	assert.Equal(t, "BC-100", c1.Lines[0].Barcode)
	assert.Equal(t, "BC-200", c2.Lines[0].Barcode)
}

func TestClear(t *testing.T) {
	s, _, pub := newTestStore(t)
	ctx := context.Background()
	_, _ = s.Scan(ctx, "m1", "BC-100")

	c, err := s.Clear(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
	assert.True(t, c.Subtotal.IsZero())
	assert.Equal(t, []domain.EventType{domain.EventScan, domain.EventClear}, pub.types())
}

func TestEventsCarryCartSnapshot(t *testing.T) {
	s, _, pub := newTestStore(t)
	ctx := context.Background()

	_, _ = s.Scan(ctx, "m1", "BC-100")
	_, _ = s.Remove(ctx, "m1", "BC-100")

	require.Equal(t, []domain.EventType{domain.EventScan, domain.EventRemove}, pub.types())
	p, ok := pub.events[0].Payload.(domain.CartEventPayload)
	require.True(t, ok)
	assert.Equal(t, "BC-100", p.Barcode)
	assert.True(t, p.Cart.Subtotal.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, "m1", pub.events[0].MerchantID)
}

func TestConcurrentTerminalsNeverExceedStock(t *testing.T) {
	s, _, pub := newTestStore(t)
	ctx := context.Background()

	var ok atomic.Int32
	g := errgroup.Group{}
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			if _, err := s.Scan(ctx, "m1", "BC-100"); err == nil {
				ok.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	c, err := s.Summary(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int32(5), ok.Load())
	assert.Equal(t, 5, c.Lines[0].Quantity)
	assert.True(t, c.Subtotal.Equal(decimal.NewFromInt(1250)))
	assert.Len(t, pub.types(), 5)
}

func TestAcquire_BlocksMutations(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()
	_, _ = s.Scan(ctx, "m1", "BC-100")

	sess, err := s.Acquire(ctx, "m1")
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = s.Scan(shortCtx, "m1", "BC-100")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = s.Scan(ctx, "m2", "BC-100")
	assert.NoError(t, err, "other merchants are not blocked")

	c, err := s.Summary(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Lines[0].Quantity, "summary does not wait for the lock")

	sess.Clear(ctx)
	sess.Release()
	sess.Release()

	c, err = s.Scan(ctx, "m1", "BC-100")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Lines[0].Quantity)
}

func TestCartSurvivesRestartThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	redisCache := cache.NewRedisCache(client, time.Minute)
	ctx := context.Background()

	first, _, _ := newTestStore(t, WithCache(redisCache))
	_, err := first.Scan(ctx, "m1", "BC-100")
	require.NoError(t, err)
	_, err = first.Scan(ctx, "m1", "BC-200")
	require.NoError(t, err)

	second, _, _ := newTestStore(t, WithCache(redisCache))
	c, err := second.Summary(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 2)
	assert.True(t, c.Subtotal.Equal(decimal.RequireFromString("399.50")))

	_, err = second.Clear(ctx, "m1")
	require.NoError(t, err)
	_, err = redisCache.Get(ctx, "m1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func seedRedisCart(t *testing.T) *cache.RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	redisCache := cache.NewRedisCache(client, time.Minute)

	first, _, _ := newTestStore(t, WithCache(redisCache))
	for _, bc := range []string{"BC-100", "BC-200"} {
		_, err := first.Scan(context.Background(), "m1", bc)
		require.NoError(t, err)
	}
	return redisCache
}

func TestCartRehydratesDespiteCancelledCaller(t *testing.T) {
	redisCache := seedRedisCart(t)
	second, _, _ := newTestStore(t, WithCache(redisCache))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	c, err := second.Summary(cancelled, "m1")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 2)

	ctx := context.Background()
	_, err = second.Scan(ctx, "m1", "BC-300")
	require.NoError(t, err)

	mirrored, err := redisCache.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, mirrored.Lines, 3)
}

func TestCartRehydrationRetriesAfterCacheError(t *testing.T) {
	redisCache := seedRedisCart(t)
	flaky := &flakyCache{CartCache: redisCache, failGets: 1}
	second, _, _ := newTestStore(t, WithCache(flaky))
	ctx := context.Background()

	c, err := second.Summary(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, c.Lines, "failed read answers with an empty cart")

	c, err = second.Summary(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 2, "next access reads the cache again")

	_, err = second.Scan(ctx, "m1", "BC-100")
	require.NoError(t, err)
	mirrored, err := redisCache.Get(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, mirrored.Lines, 2)
	assert.Equal(t, 2, mirrored.Lines[0].Quantity)
	assert.Equal(t, 2, flaky.gets)
}

func TestCacheFailureDoesNotFailScan(t *testing.T) {
	broken := &brokenCache{}
	s, _, _ := newTestStore(t, WithCache(broken))

	c, err := s.Scan(context.Background(), "m1", "BC-100")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 1)
	assert.Equal(t, 2, broken.calls)
}

func TestClearAbandoned(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s, _, pub := newTestStore(t, withClock(clock), WithAbandonment(30*time.Minute, 0))
	ctx := context.Background()

	_, _ = s.Scan(ctx, "stale", "BC-100")
	now = now.Add(20 * time.Minute)
	_, _ = s.Scan(ctx, "active", "BC-200")
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, s.clearAbandoned())

	stale, _ := s.Summary(ctx, "stale")
	active, _ := s.Summary(ctx, "active")
	assert.Empty(t, stale.Lines)
	assert.Len(t, active.Lines, 1)
	assert.Equal(t, domain.EventClear, pub.types()[2])
}

func TestClearAbandoned_SkipsHeldCart(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s, _, _ := newTestStore(t, withClock(func() time.Time { return now }), WithAbandonment(time.Minute, 0))
	ctx := context.Background()

	_, _ = s.Scan(ctx, "m1", "BC-100")
	now = now.Add(time.Hour)

	sess, err := s.Acquire(ctx, "m1")
	require.NoError(t, err)
	defer sess.Release()

	assert.Equal(t, 0, s.clearAbandoned())
	assert.Len(t, sess.Cart().Lines, 1)
}

func TestPruneEmpty(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Scan(ctx, "busy", "BC-100")
	require.NoError(t, err)
	_, err = s.Scan(ctx, "done", "BC-100")
	require.NoError(t, err)
	_, err = s.Clear(ctx, "done")
	require.NoError(t, err)
	_, err = s.Summary(ctx, "browsing")
	require.NoError(t, err)

	held, err := s.Acquire(ctx, "held")
	require.NoError(t, err)
	defer held.Release()

	assert.Equal(t, 4, s.entryCount())
	assert.Equal(t, 2, s.pruneEmpty())
	assert.Equal(t, 2, s.entryCount())

	c, err := s.Summary(ctx, "busy")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 1)

	c, err = s.Scan(ctx, "done", "BC-200")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 1)
}

func TestPruneEmpty_StaleEntryIsNotReused(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	stale := s.entry("m1")
	require.Equal(t, 1, s.pruneEmpty())

	live, err := s.lockEntry(ctx, "m1")
	require.NoError(t, err)
	defer live.unlock()
	assert.NotSame(t, stale, live)
	assert.False(t, live.retired)
}
