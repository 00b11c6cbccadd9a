package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

type mapEntry struct {
	value     TileCacheValue
	updatedAt time.Time
}

type TypedSyncMap struct {
	m sync.Map
}

func (c *TypedSyncMap) Load(k TileCacheKey) (mapEntry, bool) {
	v, exists := c.m.Load(k)
	if !exists {
		return mapEntry{}, false
	}
	return v.(mapEntry), exists
}

func (c *TypedSyncMap) Store(k TileCacheKey, v mapEntry) {
	c.m.Store(k, v)
}

func (c *TypedSyncMap) Delete(k TileCacheKey) {
	c.m.Delete(k)
}

func (c *TypedSyncMap) Range(fn func(k TileCacheKey, v mapEntry) bool) {
	c.m.Range(func(k, v any) bool {
		return fn(k.(TileCacheKey), v.(mapEntry))
	})
}

// MapCache keeps everything in process memory. It backs the "memory"
// backend and tests.
type MapCache struct {
	m   *TypedSyncMap
	now func() time.Time
}

func NewMapCache() *MapCache {
	return &MapCache{
		m:   &TypedSyncMap{},
		now: time.Now,
	}
}

var _ TileCache = (*MapCache)(nil)

func (c *MapCache) Get(_ context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	v, exists := c.m.Load(k)
	return v.value, exists, nil
}

func (c *MapCache) Set(_ context.Context, k TileCacheKey, v TileCacheValue) error {
	c.m.Store(k, mapEntry{value: v, updatedAt: c.now()})
	return nil
}

func (c *MapCache) Keys(_ context.Context, provider string) ([]string, error) {
	var keys []string
	c.m.Range(func(k TileCacheKey, _ mapEntry) bool {
		if k.Provider == provider {
			keys = append(keys, k.QuadKey)
		}
		return true
	})
	sort.Strings(keys)
	return keys, nil
}

func (c *MapCache) RemoveAll(_ context.Context, provider string) error {
	c.m.Range(func(k TileCacheKey, _ mapEntry) bool {
		if k.Provider == provider {
			c.m.Delete(k)
		}
		return true
	})
	return nil
}

func (c *MapCache) PurgeOlderThan(_ context.Context, provider string, cutoff time.Time) (int, error) {
	removed := 0
	c.m.Range(func(k TileCacheKey, v mapEntry) bool {
		if k.Provider == provider && v.updatedAt.Before(cutoff) {
			c.m.Delete(k)
			removed++
		}
		return true
	})
	return removed, nil
}

func (c *MapCache) Stats(_ context.Context, provider string) (Stats, error) {
	var s Stats
	c.m.Range(func(k TileCacheKey, v mapEntry) bool {
		if k.Provider == provider {
			s.Count++
			s.Bytes += int64(len(v.value))
		}
		return true
	})
	return s, nil
}

func (c *MapCache) Close() error {
	return nil
}
