package metrics

import (
	"context"
	"time"

	"github.com/go-mcpauth/mcpauth/internal/core"
)

// Cache keys for gauge queries.
const (
	cacheKeyActiveTokens = "metrics:active_tokens"
	cacheKeyActiveUsers  = "metrics:active_users"
	cacheKeyClients      = "metrics:clients"
)

// CacheWrapper caches gauge queries so that multi-instance deployments
// sharing one database do not all run the same COUNTs every interval.
type CacheWrapper struct {
	store core.MetricsStore
	cache core.Cache[int64]
}

// NewCacheWrapper creates a cache-backed gauge query wrapper.
func NewCacheWrapper(store core.MetricsStore, c core.Cache[int64]) *CacheWrapper {
	return &CacheWrapper{
		store: store,
		cache: c,
	}
}

func (w *CacheWrapper) getOrCount(
	ctx context.Context,
	key string,
	ttl time.Duration,
	count func() (int64, error),
) (int64, error) {
	if value, err := w.cache.Get(ctx, key); err == nil {
		return value, nil
	}

	value, err := count()
	if err != nil {
		return 0, err
	}
	_ = w.cache.Set(ctx, key, value, ttl)
	return value, nil
}

// ActiveTokensCount returns the number of live token pairs.
func (w *CacheWrapper) ActiveTokensCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return w.getOrCount(ctx, cacheKeyActiveTokens, ttl, w.store.CountActiveTokens)
}

// ActiveUsersCount returns the number of active users.
func (w *CacheWrapper) ActiveUsersCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return w.getOrCount(ctx, cacheKeyActiveUsers, ttl, w.store.CountActiveUsers)
}

// ClientsCount returns the number of registered clients.
func (w *CacheWrapper) ClientsCount(ctx context.Context, ttl time.Duration) (int64, error) {
	return w.getOrCount(ctx, cacheKeyClients, ttl, w.store.CountClients)
}
