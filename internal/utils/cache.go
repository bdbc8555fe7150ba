package utils

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem 包装缓存数据和过期时间
type CacheItem[V any] struct {
	Data      V
	ExpiresAt time.Time
}

// TTLCache 带过期时间的本地 LRU 缓存
type TTLCache[K comparable, V any] struct {
	lruCache *lru.Cache[K, CacheItem[V]]
	ttl      time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewTTLCache 创建容量为 size、默认过期时间为 ttl 的缓存
func NewTTLCache[K comparable, V any](size int, ttl time.Duration) (*TTLCache[K, V], error) {
	l, err := lru.New[K, CacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[K, V]{
		lruCache: l,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Set 使用默认 TTL 设置缓存
func (c *TTLCache[K, V]) Set(key K, data V) {
	c.SetWithTTL(key, data, c.ttl)
}

// SetWithTTL 设置缓存，TTL 为过期时间
func (c *TTLCache[K, V]) SetWithTTL(key K, data V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lruCache.Add(key, CacheItem[V]{
		Data:      data,
		ExpiresAt: c.now().Add(ttl),
	})
}

// Get 获取缓存，若不存在或已过期则返回 false
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	val, ok := c.lruCache.Get(key)
	if !ok {
		return zero, false
	}

	// 检查过期
	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return zero, false
	}

	return val.Data, true
}

// Delete 删除指定缓存
func (c *TTLCache[K, V]) Delete(key K) {
	c.lruCache.Remove(key)
}

// Len 返回当前条目数（含未清理的过期条目）
func (c *TTLCache[K, V]) Len() int {
	return c.lruCache.Len()
}
