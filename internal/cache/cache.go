// Package cache provides a two-tier cache: in-memory L1 plus optional Redis L2.
// L1 is lost on restart, L2 survives it.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options configures a Cache.
type Options struct {
	RedisURL        string
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
}

// Cache is safe for concurrent use. A nil *Cache behaves as an always-miss cache.
type Cache struct {
	l1         sync.Map // key → *entry
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int
	logger     *zap.Logger
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// New builds the cache. An unreachable or invalid Redis disables L2 instead of
// failing. The cleanup loop stops with ctx.
func New(ctx context.Context, opts Options, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}

	c := &Cache{ttl: opts.TTL, maxEntries: opts.MaxEntries, logger: logger, now: time.Now}

	if opts.RedisURL != "" {
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			logger.Warn("cache: invalid redis URL, L2 disabled", zap.Error(err))
		} else {
			rdb := redis.NewClient(redisOpts)
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				logger.Warn("cache: redis unreachable, L2 disabled", zap.Error(err))
				_ = rdb.Close()
			} else {
				c.rdb = rdb
				logger.Info("cache: L2 redis connected", zap.String("addr", redisOpts.Addr))
			}
		}
	}

	logger.Info("cache: initialized",
		zap.Duration("ttl", c.ttl),
		zap.Bool("redis", c.rdb != nil),
		zap.Int("max_entries", c.maxEntries),
	)

	go c.cleanupLoop(ctx, opts.CleanupInterval)
	return c
}

// Key builds a deterministic cache key from parts.
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("podtalk:%s:%x", namespace, hash[:12])
}

// GetBytes tries L1, then L2. An L2 hit repopulates L1.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	if val, ok := c.l1.Load(key); ok {
		e := val.(*entry)
		if c.now().Before(e.expiresAt) {
			c.hits.Add(1)
			return e.data, true
		}
		c.l1.Delete(key)
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			c.hits.Add(1)
			c.l1.Store(key, &entry{data: data, expiresAt: c.now().Add(c.ttl)})
			return data, true
		}
		if err != redis.Nil {
			c.logger.Debug("cache: L2 get failed", zap.String("key", key), zap.Error(err))
		}
	}

	c.misses.Add(1)
	return nil, false
}

// SetBytes stores data in both tiers.
func (c *Cache) SetBytes(ctx context.Context, key string, data []byte) {
	if c == nil {
		return
	}

	c.evictIfNeeded()
	c.l1.Store(key, &entry{data: data, expiresAt: c.now().Add(c.ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Debug("cache: L2 set failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

// Close releases the Redis client.
func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Load decodes a cached JSON value of type T.
func Load[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var out T
	data, ok := c.GetBytes(ctx, key)
	if !ok {
		return out, false
	}
	if err := sonic.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// Store encodes v as JSON and caches it.
func Store[T any](ctx context.Context, c *Cache, key string, v T) {
	if c == nil {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		c.logger.Debug("cache: encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.SetBytes(ctx, key, data)
}

// evictIfNeeded drops expired entries first, then the oldest ones.
func (c *Cache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count < c.maxEntries {
		return
	}

	now := c.now()
	c.l1.Range(func(key, val any) bool {
		if e, ok := val.(*entry); ok && now.After(e.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	for count >= c.maxEntries {
		var oldestKey any
		var oldestAt time.Time
		c.l1.Range(func(key, val any) bool {
			e, ok := val.(*entry)
			if ok && (oldestKey == nil || e.expiresAt.Before(oldestAt)) {
				oldestKey, oldestAt = key, e.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			break
		}
		c.l1.Delete(oldestKey)
		count--
	}
}

func (c *Cache) cleanupLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := c.now()
			c.l1.Range(func(key, val any) bool {
				if e, ok := val.(*entry); ok && now.After(e.expiresAt) {
					c.l1.Delete(key)
				}
				return true
			})
		}
	}
}
