package resolver

import (
	"context"
	"fmt"
	"sync"
)

// Cache memoizes resolved values for a single ReplaceJob execution. A job opens
// its own cache through a CacheFactory and discards it when it finishes, so no
// mapping outlives the job that resolved it.
type Cache interface {
	Get(ctx context.Context, key interface{}) (value interface{}, ok bool, err error)
	Set(ctx context.Context, key, value interface{}) error
	Clear(ctx context.Context) error
}

// CacheFactory opens an empty cache for one job.
type CacheFactory func(ctx context.Context) (Cache, error)

// keyOf distinguishes values of different types that print alike, e.g. 1 and "1".
func keyOf(v interface{}) string {
	return fmt.Sprintf("%T:%v", v, v)
}

// MemoryCache is an in-process Cache safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]interface{}
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]interface{})}
}

// MemoryCacheFactory opens a new MemoryCache per job.
func MemoryCacheFactory() CacheFactory {
	return func(ctx context.Context) (Cache, error) {
		return NewMemoryCache(), nil
	}
}

func (c *MemoryCache) Get(ctx context.Context, key interface{}) (interface{}, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[keyOf(key)]
	return v, ok, nil
}

func (c *MemoryCache) Set(ctx context.Context, key, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[keyOf(key)] = value
	return nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]interface{})
	return nil
}

// Len is the number of cached keys.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
