package billing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/stratplan/pkg/entitlement"
	"github.com/dmitrymomot/stratplan/pkg/logger"
)

const (
	cacheKeyPrefix = "stratplan:subscription:"
	noSubscription = "none"
)

// Invalidator drops cached subscription state for a tenant.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID uuid.UUID) error
}

// CachedStore is a read-through Redis cache in front of a SubscriptionStore.
// Missing subscriptions are cached too, so free tenants do not hit the
// database on every check. Redis errors fall through to the inner store.
//
// Entries are keyed by a per-tenant generation that Invalidate bumps, so a
// read that raced an invalidation writes under the old generation and is
// never served.
type CachedStore struct {
	inner  entitlement.SubscriptionStore
	client redis.UniversalClient
	ttl    time.Duration
	log    *slog.Logger
}

// CacheOption configures a CachedStore.
type CacheOption func(*CachedStore)

func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *CachedStore) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCachedStore wraps inner. Panics if inner or client is nil.
func NewCachedStore(inner entitlement.SubscriptionStore, client redis.UniversalClient, ttl time.Duration, opts ...CacheOption) *CachedStore {
	if inner == nil {
		panic("billing: inner subscription store is required")
	}
	if client == nil {
		panic("billing: redis client is required")
	}
	c := &CachedStore{
		inner:  inner,
		client: client,
		ttl:    ttl,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedStore) GetActiveSubscription(ctx context.Context, tenantID uuid.UUID) (*entitlement.Subscription, error) {
	gen, err := c.client.Get(ctx, generationKey(tenantID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.WarnContext(ctx, "subscription cache read failed", logger.TenantID(tenantID), logger.Error(err))
		return c.inner.GetActiveSubscription(ctx, tenantID)
	}
	key := cacheKey(tenantID, gen)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(raw) == noSubscription {
			return nil, entitlement.ErrSubscriptionNotFound
		}
		var sub entitlement.Subscription
		if err := json.Unmarshal(raw, &sub); err == nil {
			return &sub, nil
		}
		c.log.WarnContext(ctx, "dropping undecodable cached subscription", logger.TenantID(tenantID))
	case !errors.Is(err, redis.Nil):
		c.log.WarnContext(ctx, "subscription cache read failed", logger.TenantID(tenantID), logger.Error(err))
	}

	sub, err := c.inner.GetActiveSubscription(ctx, tenantID)
	switch {
	case errors.Is(err, entitlement.ErrSubscriptionNotFound):
		c.store(ctx, key, []byte(noSubscription))
		return nil, err
	case err != nil:
		return nil, err
	}

	if raw, err := json.Marshal(sub); err == nil {
		c.store(ctx, key, raw)
	}
	return sub, nil
}

// Invalidate moves tenantID to a new generation. Entries of older
// generations are left to expire with their TTL.
func (c *CachedStore) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	return c.client.Incr(ctx, generationKey(tenantID)).Err()
}

func (c *CachedStore) store(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "subscription cache write failed", slog.String("key", key), logger.Error(err))
	}
}

func cacheKey(tenantID uuid.UUID, gen int64) string {
	return cacheKeyPrefix + tenantID.String() + ":" + strconv.FormatInt(gen, 10)
}

func generationKey(tenantID uuid.UUID) string {
	return cacheKeyPrefix + tenantID.String() + ":gen"
}
