package token

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BalanceCache holds raw account snapshots for display reads. It never
// authorizes a debit: every mutation re-reads the locked row.
//
// A read that misses, loads the row and then calls Set can race a mutation
// that commits and calls Invalidate in between. The cache then serves the
// pre-mutation snapshot until the entry's TTL runs out. Entries must
// therefore always carry a short TTL.
type BalanceCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, sellerID uuid.UUID) (*Account, error)
	Set(ctx context.Context, acc *Account) error
	Invalidate(ctx context.Context, sellerID uuid.UUID) error
}

const cacheKeyPrefix = "tokens:account:"

// RedisCache is a BalanceCache with a short TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func cacheKey(sellerID uuid.UUID) string {
	return cacheKeyPrefix + sellerID.String()
}

func (c *RedisCache) Get(ctx context.Context, sellerID uuid.UUID) (*Account, error) {
	raw, err := c.rdb.Get(ctx, cacheKey(sellerID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var acc Account
	if err := json.Unmarshal([]byte(raw), &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *RedisCache) Set(ctx context.Context, acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey(acc.SellerID), string(data), c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, sellerID uuid.UUID) error {
	return c.rdb.Del(ctx, cacheKey(sellerID)).Err()
}
