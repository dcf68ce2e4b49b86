// Package cache holds the Redis-backed cache for collection listings. Every
// successful mutation of a collection invalidates its cached listing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "shopadmin:listings:"

// ListingCache caches rendered collection listings by name ("products",
// "categories", "users").
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewListingCache creates a Redis-backed listing cache.
func NewListingCache(addr, password string, ttl time.Duration) (*ListingCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("listing cache redis addr is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ListingCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}, nil
}

// Get unmarshals the cached listing into dest. A miss or a Redis failure
// reports false; the caller falls through to the store.
func (c *ListingCache) Get(ctx context.Context, collection string, dest any) bool {
	data, err := c.client.Get(ctx, keyPrefix+collection).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

// Set stores the listing. Failures are swallowed: the cache is an
// accelerator, never a source of truth.
func (c *ListingCache) Set(ctx context.Context, collection string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, keyPrefix+collection, data, c.ttl).Err()
}

// Invalidate drops the cached listing for the collection.
func (c *ListingCache) Invalidate(ctx context.Context, collection string) {
	_ = c.client.Del(ctx, keyPrefix+collection).Err()
}
