package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mtm-hub/src/interfaces"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mtm:cache:"

// -----------------------------------------------------------------------------

// RedisCache shares the response cache between hub replicas. Errors are
// logged and treated as misses so a Redis outage only costs extra fetches.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	clock  interfaces.IClock
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRedisCache(addr, password string, db int, ttl time.Duration, clock interfaces.IClock, log *logger.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 2 * time.Second,
		MaxRetries:  1,
	})
	return &RedisCache{client: client, ttl: ttl, clock: clock, logger: log}
}

// -----------------------------------------------------------------------------

// Ping checks connectivity at startup.
func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (r *RedisCache) Get(ctx context.Context, userID string) (models.MCacheEntry, bool) {
	data, err := r.client.Get(ctx, keyPrefix+userID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warning("Redis get %s failed: %v", userID, err)
		}
		return models.MCacheEntry{}, false
	}

	var entry models.MCacheEntry
	if err := sonic.Unmarshal(data, &entry); err != nil {
		r.logger.Warning("Dropping malformed cache entry for %s: %v", userID, err)
		return models.MCacheEntry{}, false
	}
	// Redis expiry runs on its own clock
	if r.clock.Now().Sub(entry.FetchedAt) >= r.ttl {
		return models.MCacheEntry{}, false
	}
	return entry, true
}

// -----------------------------------------------------------------------------

func (r *RedisCache) Set(ctx context.Context, userID string, entry models.MCacheEntry) {
	if r.ttl <= 0 {
		return
	}
	data, err := sonic.Marshal(entry)
	if err != nil {
		r.logger.Warning("Failed to marshal cache entry for %s: %v", userID, err)
		return
	}
	if err := r.client.Set(ctx, keyPrefix+userID, data, r.ttl).Err(); err != nil {
		r.logger.Warning("Redis set %s failed: %v", userID, err)
	}
}

// -----------------------------------------------------------------------------

func (r *RedisCache) Delete(ctx context.Context, userID string) {
	if err := r.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		r.logger.Warning("Redis delete %s failed: %v", userID, err)
	}
}

// -----------------------------------------------------------------------------

func (r *RedisCache) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	keys := []string{}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.logger.Warning("Redis scan failed: %v", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warning("Redis clear failed: %v", err)
	}
}

// -----------------------------------------------------------------------------

func (r *RedisCache) Close() error {
	return r.client.Close()
}
