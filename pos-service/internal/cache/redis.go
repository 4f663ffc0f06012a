package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_pos/pos-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 15 * time.Minute

	// entryVersion changes whenever the stored cart layout does; older blobs
	// are reported unusable rather than half-decoded.
	entryVersion = 1
)

// cartEntry is the stored form of a cart.
type cartEntry struct {
	Version    int          `json:"v"`
	MerchantID string       `json:"merchantId"`
	Cart       *domain.Cart `json:"cart"`
}

// RedisCache keeps one JSON entry per merchant under pos:cart:<merchant>.
type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = DefaultTTL
	}
	return &RedisCache{client: client, baseTTL: baseTTL}
}

// Get decodes the merchant's entry and recomputes the subtotal from its lines,
// so a rehydrated cart always satisfies the subtotal invariant.
func (r *RedisCache) Get(ctx context.Context, merchantID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(merchantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", merchantID, err)
	}

	var entry cartEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnusableEntry, err)
	}
	switch {
	case entry.Version != entryVersion:
		return nil, fmt.Errorf("%w: version %d, want %d", ErrUnusableEntry, entry.Version, entryVersion)
	case entry.Cart == nil:
		return nil, fmt.Errorf("%w: no cart", ErrUnusableEntry)
	case entry.MerchantID != merchantID || entry.Cart.MerchantID != merchantID:
		return nil, fmt.Errorf("%w: stored for merchant %q", ErrUnusableEntry, entry.Cart.MerchantID)
	}

	c := entry.Cart
	if c.Lines == nil {
		c.Lines = []domain.CartLine{}
	}
	for _, l := range c.Lines {
		if l.Quantity < 1 {
			return nil, fmt.Errorf("%w: line %s has quantity %d", ErrUnusableEntry, l.Barcode, l.Quantity)
		}
	}
	c.Recalculate(c.UpdatedAt)
	return c, nil
}

// Set stores the cart with the base TTL plus up to four minutes of jitter so
// carts written together do not expire together.
func (r *RedisCache) Set(ctx context.Context, merchantID string, cart *domain.Cart) error {
	data, err := json.Marshal(cartEntry{Version: entryVersion, MerchantID: merchantID, Cart: cart})
	if err != nil {
		return fmt.Errorf("marshal cart %s: %w", merchantID, err)
	}

	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	if err := r.client.Set(ctx, cacheKey(merchantID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", merchantID, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, merchantID string) error {
	if err := r.client.Del(ctx, cacheKey(merchantID)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", merchantID, err)
	}
	return nil
}

func cacheKey(merchantID string) string {
	return "pos:cart:" + merchantID
}
