package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoizes effective-permission lookups in Redis. Each tenant carries a
// generation counter; mutations bump it, which orphans every cached entry for
// that tenant without scanning keys. A nil Cache (or nil client) disables
// caching entirely.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func genKey(tenantID int64) string {
	return fmt.Sprintf("rbac:gen:%d", tenantID)
}

func (c *Cache) generation(ctx context.Context, tenantID int64) (int64, error) {
	gen, err := c.client.Get(ctx, genKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Fetch loads a cached value or populates it via the loader. Cache errors are
// returned so callers can decide to degrade; the service treats them as a miss.
func (c *Cache) Fetch(ctx context.Context, tenantID, userID int64, loader func(context.Context) (EffectivePermissions, error)) (EffectivePermissions, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	gen, err := c.generation(ctx, tenantID)
	if err != nil {
		return loader(ctx)
	}
	key := fmt.Sprintf("rbac:perms:%d:%d:%d", tenantID, gen, userID)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached EffectivePermissions
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	}

	value, err := loader(ctx)
	if err != nil {
		return EffectivePermissions{}, err
	}
	if raw, err := json.Marshal(value); err == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return value, nil
}

// Invalidate bumps the tenant generation, orphaning all cached entries.
func (c *Cache) Invalidate(ctx context.Context, tenantID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Incr(ctx, genKey(tenantID)).Err()
}
