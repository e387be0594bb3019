package render

import (
	"container/list"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/choropleth/internal/model"
)

// Document kinds held by the cache.
const (
	KindMap   = "map"
	KindChart = "chart"
)

// DocKey identifies a rendered document. Revision ties it to the frame it was
// painted from, so a new selection never serves a stale document.
type DocKey struct {
	Kind      string
	Attribute model.AttributeName
	Revision  string
}

func (k DocKey) String() string {
	return k.Kind + "/" + k.Attribute.Slug() + "/" + k.Revision
}

// Cache is a concurrency-safe LRU cache of rendered documents with TTL expiry.
type Cache struct {
	mu         sync.Mutex
	entries    map[DocKey]*list.Element
	lru        *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	hits       atomic.Int64
	misses     atomic.Int64
}

type cacheEntry struct {
	key      DocKey
	data     []byte
	storedAt time.Time
}

// CacheStats reports cache occupancy and hit rate.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewCache creates a cache holding up to maxEntries documents for ttl each.
// A non-positive ttl never expires entries.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		entries:    make(map[DocKey]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the cached document, or false on a miss or expiry.
func (c *Cache) Get(key DocKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.lru.Remove(el)
		delete(c.entries, key)
		c.misses.Add(1)
		return nil, false
	}

	c.lru.MoveToFront(el)
	c.hits.Add(1)
	return entry.data, true
}

// Put stores a document, evicting the least recently used entry when full.
func (c *Cache) Put(key DocKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value = &cacheEntry{key: key, data: data, storedAt: c.now()}
		c.lru.MoveToFront(el)
		return
	}

	for c.lru.Len() >= c.maxEntries {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, data: data, storedAt: c.now()})
}

// GetOrRender returns the cached document for key or renders, stores and
// returns it. Render errors are not cached.
func (c *Cache) GetOrRender(key DocKey, render func() ([]byte, error)) ([]byte, bool, error) {
	if data, ok := c.Get(key); ok {
		return data, true, nil
	}
	data, err := render()
	if err != nil {
		return nil, false, err
	}
	c.Put(key, data)
	return data, false, nil
}

// InvalidateExcept drops every entry whose revision is not in keep.
func (c *Cache) InvalidateExcept(keep ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for key, el := range c.entries {
		if !slices.Contains(keep, key.Revision) {
			c.lru.Remove(el)
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

// Stats returns occupancy and hit statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	entries := c.lru.Len()
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    rate,
	}
}
