package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/journeygen-backend/internal/storage"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached file bodies
	CacheKeyPrefix = "journeygen:file:"
	// DefaultCacheTTL bounds how long a body stays cached
	DefaultCacheTTL = 8 * time.Hour
	// MaxCachedFileSize keeps large uploads out of Redis
	MaxCachedFileSize = 512 << 10
)

// CachedFileStore keeps file bodies in Redis, keyed by locator. Locators are
// never reused, so entries only need dropping on Delete. Redis errors fall
// back to the underlying store.
type CachedFileStore struct {
	store storage.FileStore
	redis *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedFileStore(store storage.FileStore, client *redis.Client, log *logger.Logger) *CachedFileStore {
	return &CachedFileStore{store: store, redis: client, ttl: DefaultCacheTTL, log: log}
}

func (c *CachedFileStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	return c.store.Save(ctx, name, r)
}

// Read serves the body from cache, filling it on a miss.
func (c *CachedFileStore) Read(ctx context.Context, locator string) ([]byte, error) {
	key := CacheKeyPrefix + locator

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return data, nil
	case !errors.Is(err, redis.Nil):
		c.log.Debug("file cache unavailable", "error", err)
	}

	data, err = c.store.Read(ctx, locator)
	if err != nil {
		return nil, err
	}
	if len(data) <= MaxCachedFileSize {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Debug("file cache fill failed", "error", err)
		}
	}
	return data, nil
}

func (c *CachedFileStore) Delete(ctx context.Context, locator string) error {
	if err := c.redis.Del(ctx, CacheKeyPrefix+locator).Err(); err != nil {
		c.log.Warn("file cache invalidation failed", "error", err)
	}
	return c.store.Delete(ctx, locator)
}
