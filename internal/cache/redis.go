package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"storefront-service/internal/entity"
)

const (
	DefaultStockTTL       = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
)

// ProductCache keeps product documents as JSON under product-stock:<id>.
type ProductCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProductCache(rdb *redis.Client, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = DefaultStockTTL
	}
	return &ProductCache{rdb: rdb, ttl: ttl}
}

func productKey(id string) string {
	return fmt.Sprintf("product-stock:%s", id)
}

func (c *ProductCache) Get(ctx context.Context, productID string) (*entity.Product, bool, error) {
	val, err := c.rdb.Get(ctx, productKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var product entity.Product
	if err := json.Unmarshal(val, &product); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached product %s: %w", productID, err)
	}
	return &product, true, nil
}

func (c *ProductCache) Set(ctx context.Context, product *entity.Product) error {
	val, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, productKey(product.ID.Hex()), val, c.ttl).Err()
}

func (c *ProductCache) Invalidate(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = productKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// IdempotencyGuard records order idempotency keys with SETNX.
type IdempotencyGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyGuard(rdb *redis.Client, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyGuard{rdb: rdb, ttl: ttl}
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotent-key:%s", key)
}

func (g *IdempotencyGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.rdb.SetNX(ctx, idempotencyKey(key), "exists", g.ttl).Result()
}

func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, idempotencyKey(key)).Err()
}
