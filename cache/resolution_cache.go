package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"GuildFM/logger"

	"github.com/go-redis/redis/v8"
)

const (
	resolveKey      = "resolve:query:%s" // String: 搜索关键词 -> 视频 ID
	resolveIndexKey = "resolve:queries"  // Set: 已缓存的关键词
)

// ResolutionCache maps an exact search query to the identifier the search tool returned.
// Entries are never evicted. Implementations must be safe for concurrent use.
type ResolutionCache interface {
	Get(ctx context.Context, query string) (string, bool, error)
	Set(ctx context.Context, query, id string) error
	Len(ctx context.Context) (int, error)
}

// MemoryResolutionCache 进程内缓存
type MemoryResolutionCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryResolutionCache 创建进程内解析缓存
func NewMemoryResolutionCache() *MemoryResolutionCache {
	return &MemoryResolutionCache{entries: make(map[string]string)}
}

func (c *MemoryResolutionCache) Get(_ context.Context, query string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.entries[query]
	return id, ok, nil
}

func (c *MemoryResolutionCache) Set(_ context.Context, query, id string) error {
	c.mu.Lock()
	c.entries[query] = id
	c.mu.Unlock()
	return nil
}

func (c *MemoryResolutionCache) Len(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// RedisResolutionCache 基于 Redis 的解析缓存，多实例共享
type RedisResolutionCache struct {
	client *redis.Client
	ttl    time.Duration // 0 表示永不过期
}

// NewRedisResolutionCache 创建 Redis 解析缓存
func NewRedisResolutionCache(client *redis.Client) *RedisResolutionCache {
	return &RedisResolutionCache{client: client}
}

func (c *RedisResolutionCache) Get(ctx context.Context, query string) (string, bool, error) {
	if c.client == nil {
		return "", false, fmt.Errorf("Redis client not initialized")
	}

	id, err := c.client.Get(ctx, fmt.Sprintf(resolveKey, query)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get resolution for %q: %w", query, err)
	}
	return id, true, nil
}

func (c *RedisResolutionCache) Set(ctx context.Context, query, id string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(resolveKey, query), id, c.ttl)
	pipe.SAdd(ctx, resolveIndexKey, query)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store resolution for %q: %w", query, err)
	}
	return nil
}

func (c *RedisResolutionCache) Len(ctx context.Context) (int, error) {
	if c.client == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}
	n, err := c.client.SCard(ctx, resolveIndexKey).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Fallback wraps a primary cache and serves from a process-local copy whenever
// the primary fails, so a Redis outage degrades to per-process caching.
type Fallback struct {
	primary ResolutionCache
	local   *MemoryResolutionCache
}

// NewFallback 创建带本地兜底的缓存
func NewFallback(primary ResolutionCache) *Fallback {
	return &Fallback{primary: primary, local: NewMemoryResolutionCache()}
}

func (f *Fallback) Get(ctx context.Context, query string) (string, bool, error) {
	id, ok, err := f.primary.Get(ctx, query)
	if err == nil {
		return id, ok, nil
	}
	logger.Warn("resolution cache read failed, using local copy",
		logger.String("query", query), logger.ErrorField(err))
	return f.local.Get(ctx, query)
}

func (f *Fallback) Set(ctx context.Context, query, id string) error {
	_ = f.local.Set(ctx, query, id)
	if err := f.primary.Set(ctx, query, id); err != nil {
		logger.Warn("resolution cache write failed", logger.String("query", query), logger.ErrorField(err))
	}
	return nil
}

func (f *Fallback) Len(ctx context.Context) (int, error) {
	n, err := f.primary.Len(ctx)
	if err != nil {
		return f.local.Len(ctx)
	}
	return n, nil
}
