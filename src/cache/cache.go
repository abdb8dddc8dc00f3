package cache

import (
	"context"
	"time"

	"mtm-hub/src/interfaces"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"
)

// -----------------------------------------------------------------------------

// NewResponseCache builds the cache named by cache.type.
func NewResponseCache(ctx context.Context, cfg models.MCacheConfig, clock interfaces.IClock, log *logger.Logger) (interfaces.IResponseCache, error) {
	ttl := time.Duration(cfg.TTLMillis) * time.Millisecond
	if cfg.Type == "redis" {
		rc := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, ttl, clock, log)
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return nil, err
		}
		log.Info("Response cache: redis %s (ttl %v)", cfg.RedisAddr, ttl)
		return rc, nil
	}
	log.Info("Response cache: memory (ttl %v)", ttl)
	return NewMemoryCache(ttl, time.Duration(cfg.CleanupIntervalSeconds)*time.Second, clock), nil
}
