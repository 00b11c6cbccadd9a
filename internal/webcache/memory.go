package webcache

import (
	"image"
	"sync"

	"github.com/golang/groupcache/lru"
)

// memoryTier holds decoded images bounded by entry count and by an
// estimate of their decoded size.
type memoryTier struct {
	mu       sync.Mutex
	lru      *lru.Cache
	bytes    int64
	maxBytes int64
}

func newMemoryTier(maxEntries int, maxBytes int64) *memoryTier {
	m := &memoryTier{maxBytes: maxBytes}
	m.lru = lru.New(maxEntries)
	m.lru.OnEvicted = func(_ lru.Key, value any) {
		m.bytes -= imageBytes(value.(image.Image))
	}
	return m
}

func imageBytes(img image.Image) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

func (m *memoryTier) get(key string) (image.Image, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	return v.(image.Image), true
}

func (m *memoryTier) add(key string, img image.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lru.Get(key); ok {
		m.lru.Remove(key)
	}
	m.lru.Add(key, img)
	m.bytes += imageBytes(img)
	for m.maxBytes > 0 && m.bytes > m.maxBytes && m.lru.Len() > 1 {
		m.lru.RemoveOldest()
	}
}

func (m *memoryTier) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Clear()
	m.bytes = 0
}

func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}
