package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheFetchMemoizes(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) (EffectivePermissions, error) {
		loads++
		return EffectivePermissions{Roles: []string{"RESIDENT"}, Permissions: []string{"UNIT_READ"}}, nil
	}

	first, err := cache.Fetch(ctx, 1, 42, loader)
	require.NoError(t, err)
	second, err := cache.Fetch(ctx, 1, 42, loader)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, loads)
}

func TestCacheInvalidateOrphansTenantEntries(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) (EffectivePermissions, error) {
		loads++
		return EffectivePermissions{Roles: []string{"RESIDENT"}}, nil
	}

	_, err := cache.Fetch(ctx, 1, 42, loader)
	require.NoError(t, err)
	cache.Invalidate(ctx, 1)
	_, err = cache.Fetch(ctx, 1, 42, loader)
	require.NoError(t, err)
	require.Equal(t, 2, loads)
}

func TestCacheInvalidateScopedToTenant(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	loads := map[int64]int{}
	loaderFor := func(tenantID int64) func(context.Context) (EffectivePermissions, error) {
		return func(context.Context) (EffectivePermissions, error) {
			loads[tenantID]++
			return EffectivePermissions{}, nil
		}
	}

	_, err := cache.Fetch(ctx, 1, 42, loaderFor(1))
	require.NoError(t, err)
	_, err = cache.Fetch(ctx, 2, 42, loaderFor(2))
	require.NoError(t, err)

	cache.Invalidate(ctx, 1)

	_, err = cache.Fetch(ctx, 1, 42, loaderFor(1))
	require.NoError(t, err)
	_, err = cache.Fetch(ctx, 2, 42, loaderFor(2))
	require.NoError(t, err)

	require.Equal(t, 2, loads[1])
	require.Equal(t, 1, loads[2])
}

func TestNilCacheDelegatesToLoader(t *testing.T) {
	var cache *Cache
	loads := 0
	_, err := cache.Fetch(context.Background(), 1, 1, func(context.Context) (EffectivePermissions, error) {
		loads++
		return EffectivePermissions{}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, loads)
}

func TestCacheDegradesWhenRedisDown(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	loads := 0
	_, err := cache.Fetch(context.Background(), 1, 1, func(context.Context) (EffectivePermissions, error) {
		loads++
		return EffectivePermissions{}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, loads)
}
