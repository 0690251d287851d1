// internal/cache/cache.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ===============================
// CACHE INTERFACE
// ===============================

// ErrNotNumeric is returned by Increment when the key holds a non-integer
var ErrNotNumeric = errors.New("cache value is not numeric")

// Cache is a small string key/value store. A ttl of zero or less keeps
// the key until it is deleted.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Increment adds delta and returns the new value. ttl applies only
	// when the key is created by this call.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	Health(ctx context.Context) error
	Close() error
}

// ===============================
// CACHE CONFIGURATION
// ===============================

// Config holds cache configuration
type Config struct {
	Provider        string        `json:"provider" yaml:"provider"` // "memory", "redis"
	MaxKeys         int           `json:"max_keys" yaml:"max_keys"`
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`

	RedisURL      string `json:"redis_url" yaml:"redis_url"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	PoolSize      int    `json:"pool_size" yaml:"pool_size"`
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:        "memory",
		MaxKeys:         10000,
		CleanupInterval: 5 * time.Minute,
		PoolSize:        10,
	}
}

// NewCache creates a new cache instance based on configuration
func NewCache(config *Config, logger *zap.Logger) (Cache, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(config.Provider) {
	case "redis":
		return NewRedisCache(config, logger)
	case "memory", "":
		logger.Info("Using in-memory cache")
		return NewMemoryCache(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", config.Provider)
	}
}

// ===============================
// MEMORY CACHE IMPLEMENTATION
// ===============================

type memoryCache struct {
	mu      sync.Mutex
	items   map[string]*cacheItem
	maxKeys int
	logger  *zap.Logger
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

type cacheItem struct {
	value      string
	expiresAt  time.Time // zero means no expiry
	accessedAt time.Time
}

func (i *cacheItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(config *Config, logger *zap.Logger) Cache {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &memoryCache{
		items:   make(map[string]*cacheItem),
		maxKeys: config.MaxKeys,
		logger:  logger,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.cleanup(config.CleanupInterval)
	}
	return c
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return "", false, nil
	}
	now := c.now()
	if item.expired(now) {
		delete(c.items, key)
		return "", false, nil
	}
	item.accessedAt = now
	return item.value, true, nil
}

func (c *memoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxKeys > 0 && len(c.items) >= c.maxKeys {
		c.evictLRU()
	}
	now := c.now()
	c.items[key] = &cacheItem{value: value, expiresAt: expiry(now, ttl), accessedAt: now}
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *memoryCache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	item, ok := c.items[key]
	if !ok || item.expired(now) {
		c.items[key] = &cacheItem{
			value:      strconv.FormatInt(delta, 10),
			expiresAt:  expiry(now, ttl),
			accessedAt: now,
		}
		return delta, nil
	}

	current, err := strconv.ParseInt(item.value, 10, 64)
	if err != nil {
		return 0, ErrNotNumeric
	}
	current += delta
	item.value = strconv.FormatInt(current, 10)
	item.accessedAt = now
	return current, nil
}

func (c *memoryCache) Health(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("memory cache is closed")
	default:
		return nil
	}
}

func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

// cleanup runs periodic cleanup of expired items
func (c *memoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *memoryCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, item := range c.items {
		if item.expired(now) {
			delete(c.items, key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("Cleaned up expired cache items",
			zap.Int("expired_count", removed),
			zap.Int("remaining_count", len(c.items)),
		)
	}
}

// evictLRU evicts the least recently used item. Caller holds mu.
func (c *memoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time
	for key, item := range c.items {
		if oldestKey == "" || item.accessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.accessedAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// ===============================
// REDIS CACHE IMPLEMENTATION
// ===============================

type redisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache creates a new Redis-based cache
func NewRedisCache(config *Config, logger *zap.Logger) (Cache, error) {
	if config == nil {
		return nil, fmt.Errorf("cache config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var options *redis.Options
	if config.RedisURL != "" {
		var err error
		options, err = redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
	} else {
		options = &redis.Options{
			Addr:     "localhost:6379",
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		}
	}
	if config.PoolSize > 0 {
		options.PoolSize = config.PoolSize
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis cache initialized",
		zap.String("addr", options.Addr),
		zap.Int("db", options.DB),
	)
	return &redisCache{client: client, logger: logger}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		r.logger.Error("Failed to get from Redis", zap.String("key", key), zap.Error(err))
		return "", false, err
	}
	return val, true, nil
}

func (r *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisCache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	n, err := r.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		if strings.Contains(err.Error(), "not an integer") {
			return 0, ErrNotNumeric
		}
		return 0, err
	}
	if n == delta && ttl > 0 {
		if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
			r.logger.Warn("Failed to set counter expiry", zap.String("key", key), zap.Error(err))
		}
	}
	return n, nil
}

func (r *redisCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
