// Package cache provides LRU caching for built exchange documents.
package cache

import (
	"container/list"
	"sync"

	"github.com/FocuswithJustin/jwwconv/core/dxf"
)

// Cache is a generic LRU cache interface.
type Cache[K comparable, V any] interface {
	// Get retrieves a value and marks it most recently used.
	Get(key K) (V, bool)

	// Put stores a value, evicting the least recently used entry when full.
	Put(key K, value V)

	Remove(key K)
	Clear()
	Len() int
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
}

// Config contains cache configuration options.
type Config struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// OnEvict is called with the lock held when an entry leaves the cache.
	OnEvict func(key, value any)
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{MaxSize: 16}
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// lruCache is a thread-safe LRU cache implementation.
type lruCache[K comparable, V any] struct {
	mu        sync.Mutex
	config    Config
	entries   map[K]*list.Element
	evictList *list.List
	stats     Stats
}

// NewLRUCache creates a new LRU cache with the given configuration.
func NewLRUCache[K comparable, V any](config Config) Cache[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	return &lruCache[K, V]{
		config:    config,
		entries:   make(map[K]*list.Element),
		evictList: list.New(),
	}
}

func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.evictList.MoveToFront(ent)
	c.stats.Hits++
	return ent.Value.(*entry[K, V]).value, true
}

func (c *lruCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.evictList.MoveToFront(ent)
		ent.Value.(*entry[K, V]).value = value
		return
	}
	c.entries[key] = c.evictList.PushFront(&entry[K, V]{key: key, value: value})

	if c.config.MaxSize > 0 && c.evictList.Len() > c.config.MaxSize {
		if oldest := c.evictList.Back(); oldest != nil {
			c.removeElement(oldest)
			c.stats.Evictions++
		}
	}
}

func (c *lruCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.removeElement(ent)
	}
}

func (c *lruCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*list.Element)
	c.evictList.Init()
}

func (c *lruCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *lruCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.evictList.Len()
	s.MaxSize = c.config.MaxSize
	return s
}

func (c *lruCache[K, V]) removeElement(ent *list.Element) {
	c.evictList.Remove(ent)
	e := ent.Value.(*entry[K, V])
	delete(c.entries, e.key)

	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value)
	}
}

// ExchangeKey identifies one build of a source: its BLAKE3 identity and
// the expansion options.
type ExchangeKey struct {
	Identity   string
	Explode    bool
	MaxNesting int
}

// ExchangeCache is a specialized cache for built exchange documents.
type ExchangeCache struct {
	cache Cache[ExchangeKey, *dxf.Document]
}

// NewExchangeCache creates a new exchange document cache.
func NewExchangeCache(config Config) *ExchangeCache {
	return &ExchangeCache{cache: NewLRUCache[ExchangeKey, *dxf.Document](config)}
}

// NewDefaultExchangeCache creates an exchange cache with the default size.
func NewDefaultExchangeCache() *ExchangeCache {
	return NewExchangeCache(DefaultConfig())
}

// Get retrieves a document built with key.
func (c *ExchangeCache) Get(key ExchangeKey) (*dxf.Document, bool) {
	return c.cache.Get(key)
}

// Put stores a document built with key.
func (c *ExchangeCache) Put(key ExchangeKey, doc *dxf.Document) {
	c.cache.Put(key, doc)
}

// Forget drops every document built from identity.
func (c *ExchangeCache) Forget(identity string) {
	lru := c.cache.(*lruCache[ExchangeKey, *dxf.Document])
	lru.mu.Lock()
	defer lru.mu.Unlock()
	for key, ent := range lru.entries {
		if key.Identity == identity {
			lru.removeElement(ent)
		}
	}
}

func (c *ExchangeCache) Len() int {
	return c.cache.Len()
}

func (c *ExchangeCache) Stats() Stats {
	return c.cache.Stats()
}
