package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-bookstore-pos/pkg/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache stores serialized report results
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteByPattern supports a trailing '*' wildcard. Every call moves
	// Generation forward.
	DeleteByPattern(ctx context.Context, pattern string) error
	Generation() uint64
	// SetIfGeneration stores value only if no DeleteByPattern ran since gen
	// was read. It reports whether the value was stored.
	SetIfGeneration(ctx context.Context, key string, value []byte, ttl time.Duration, gen uint64) (bool, error)
}

// New returns a Redis cache when configured and reachable, otherwise an
// in-process one.
func New(cfg config.RedisConfig, logger *zap.Logger) Cache {
	if !cfg.Enabled {
		logger.Info("Redis disabled, using in-memory report cache")
		return NewInMemory()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Failed to connect to Redis, using in-memory cache",
			zap.String("host", cfg.Host),
			zap.String("port", cfg.Port),
			zap.Error(err),
		)
		rdb.Close()
		return NewInMemory()
	}

	logger.Info("Redis cache initialized",
		zap.String("host", cfg.Host),
		zap.String("port", cfg.Port),
		zap.Int("db", cfg.DB),
	)
	return &RedisCache{client: rdb, logger: logger}
}

// RedisCache implements Cache using Redis
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger

	// guards gen against writes racing a local invalidation
	mu  sync.RWMutex
	gen uint64
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		c.logger.Warn("Redis Get error", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("Redis Set error", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (c *RedisCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *RedisCache) SetIfGeneration(ctx context.Context, key string, value []byte, ttl time.Duration, gen uint64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.gen != gen {
		return false, nil
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++

	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan error: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete by pattern error: %w", err)
	}
	c.logger.Debug("Deleted keys by pattern", zap.String("pattern", pattern), zap.Int("count", len(keys)))
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryCache is used when Redis is off or unreachable
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	gen  uint64
	now  func() time.Time
}

func NewInMemory() *InMemoryCache {
	return &InMemoryCache{data: make(map[string]cacheEntry), now: time.Now}
}

func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.data[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *InMemoryCache) SetIfGeneration(_ context.Context, key string, value []byte, ttl time.Duration, gen uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false, nil
	}
	c.data[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	return true, nil
}

func (c *InMemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	prefix, wildcard := strings.CutSuffix(pattern, "*")
	for key := range c.data {
		if (wildcard && strings.HasPrefix(key, prefix)) || key == pattern {
			delete(c.data, key)
		}
	}
	return nil
}

func GetJSON(ctx context.Context, c Cache, key string, dest interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func SetJSON(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

// SetJSONIf is SetJSON guarded by SetIfGeneration
func SetJSONIf(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration, gen uint64) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.SetIfGeneration(ctx, key, data, ttl, gen)
}
