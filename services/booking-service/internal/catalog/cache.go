package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/careerpath/careerdesk/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache is a read-through Redis cache in front of another Source. Redis errors
// degrade to the underlying source.
type Cache struct {
	rdb    kv
	next   Source
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(rdb kv, next Source, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, next: next, ttl: ttl, logger: logger}
}

func cacheKey(kind model.OfferingKind, id int64) string {
	return fmt.Sprintf("catalog:%s:%d", kind, id)
}

func (c *Cache) Offering(ctx context.Context, kind model.OfferingKind, id int64) (model.Offering, error) {
	key := cacheKey(kind, id)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var o model.Offering
		if jerr := json.Unmarshal(raw, &o); jerr == nil {
			return o, nil
		}
		c.logger.Warn("catalog cache entry unreadable", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("catalog cache read failed", "key", key, "err", err)
	}

	o, err := c.next.Offering(ctx, kind, id)
	if err != nil {
		return model.Offering{}, err
	}
	if payload, jerr := json.Marshal(o); jerr == nil {
		if serr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			c.logger.Warn("catalog cache write failed", "key", key, "err", serr)
		}
	}
	return o, nil
}

// Invalidate drops a cached offering after the catalog changes it.
func (c *Cache) Invalidate(ctx context.Context, kind model.OfferingKind, id int64) error {
	return c.rdb.Del(ctx, cacheKey(kind, id)).Err()
}
