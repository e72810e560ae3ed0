// Package cache keeps recently read cases and query results in memory so
// the API does not hit SQLite for every poll.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Key prefixes; DeletePrefix drops a whole family after a write.
const (
	CasePrefix   = "case:"
	ResultPrefix = "sorgu:"
)

type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
	DeletePrefix(prefix string) int
	Clear()
	Stats() CacheStats
}

type CacheStats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Size       int       `json:"size"`
	MaxSize    int       `json:"max_size"`
	Evictions  int64     `json:"evictions"`
	LastAccess time.Time `json:"last_access"`
}

type LRUCache struct {
	cache   *cache.Cache
	mu      sync.Mutex
	stats   CacheStats
	maxSize int
}

func NewCache(maxSize int, ttl time.Duration) Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache{
		cache:   cache.New(ttl, ttl*2),
		maxSize: maxSize,
	}
}

func (c *LRUCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.LastAccess = time.Now()

	if data, found := c.cache.Get(key); found {
		c.stats.Hits++
		return data, true
	}

	c.stats.Misses++
	return nil, false
}

func (c *LRUCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache.Get(key); !exists && c.cache.ItemCount() >= c.maxSize {
		c.removeOldest()
	}

	c.cache.Set(key, value, cache.DefaultExpiration)
}

func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Delete(key)
}

// DeletePrefix removes every entry whose key starts with prefix and returns
// how many were removed.
func (c *LRUCache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
			n++
		}
	}
	return n
}

func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Flush()
	c.stats = CacheStats{}
}

func (c *LRUCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.cache.ItemCount()
	stats.MaxSize = c.maxSize
	return stats
}

// removeOldest evicts the entry closest to expiry, i.e. the one set first.
func (c *LRUCache) removeOldest() {
	items := c.cache.Items()
	if len(items) == 0 {
		return
	}

	var (
		oldestKey string
		oldest    int64
	)
	for key, item := range items {
		if oldestKey == "" || item.Expiration < oldest {
			oldestKey = key
			oldest = item.Expiration
		}
	}

	c.cache.Delete(oldestKey)
	c.stats.Evictions++
}

// CaseKey is the key of one case with its debtors.
func CaseKey(fileID string) string {
	return CasePrefix + fileID
}

// CaseListKey is the key of one page of the case list.
func CaseListKey(page, limit int) string {
	return fmt.Sprintf("%slist:%d:%d", CasePrefix, page, limit)
}

// ResultKey is the key of one stored query result; an empty sorguTipi
// stands for all of the debtor's results.
func ResultKey(borcluID, sorguTipi string) string {
	if sorguTipi == "" {
		return ResultPrefix + borcluID
	}
	return ResultPrefix + borcluID + ":" + sorguTipi
}

// GetAs returns the cached value for key when it has type T.
func GetAs[T any](c Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
