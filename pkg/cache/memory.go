package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is an in-process LRU with expiry and a tag index.
//
// Writes and invalidations hold mu across their LRU calls. The LRU calls
// onEvict under its own lock, so onEvict only queues the key; the queue is
// folded into the tag index at the start of the next locked operation.
type MemoryCache struct {
	lru *lru.LRU[string, []byte]

	mu      sync.Mutex
	tags    map[string]map[string]struct{} // tag -> keys
	keyTags map[string][]string            // key -> tags
	gens    map[string]uint64              // tag -> generation

	evictMu sync.Mutex
	evicted []string
}

// NewMemoryCache creates a new memory cache holding at most size entries
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size < 10 {
		size = 10
	}

	c := &MemoryCache{
		tags:    make(map[string]map[string]struct{}),
		keyTags: make(map[string][]string),
		gens:    make(map[string]uint64),
	}
	c.lru = lru.NewLRU[string, []byte](size, c.onEvict, ttl)
	return c
}

// Get retrieves a cached value
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrInvalidKey
	}
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

// Set stores a value and indexes it under tags
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, tags ...string) error {
	if key == "" {
		return ErrInvalidKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneEvicted()
	c.store(key, value, tags)
	return nil
}

// Generations returns the current generation of each tag
func (c *MemoryCache) Generations(ctx context.Context, tags ...string) (Stamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gens := make([]uint64, len(tags))
	for i, tag := range tags {
		gens[i] = c.gens[tag]
	}
	return Stamp{Tags: append([]string(nil), tags...), Gens: gens}, nil
}

// SetIfCurrent stores value under the stamp's tags unless one of them was
// invalidated after the stamp was taken
func (c *MemoryCache) SetIfCurrent(ctx context.Context, key string, value []byte, stamp Stamp) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	if !stamp.valid() {
		return false, ErrInvalidStamp
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, tag := range stamp.Tags {
		if c.gens[tag] != stamp.Gens[i] {
			return false, nil
		}
	}
	c.pruneEvicted()
	c.store(key, value, stamp.Tags)
	return true, nil
}

// InvalidateTags removes every entry carrying any of tags
func (c *MemoryCache) InvalidateTags(ctx context.Context, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneEvicted()

	for _, tag := range tags {
		c.gens[tag]++
		for key := range c.tags[tag] {
			c.lru.Remove(key)
		}
		delete(c.tags, tag)
	}
	return nil
}

// Len returns the number of live entries
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Close purges the cache. Tag generations survive so stamps taken before
// Close cannot fill afterwards.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	c.tags = make(map[string]map[string]struct{})
	c.keyTags = make(map[string][]string)

	c.evictMu.Lock()
	c.evicted = nil
	c.evictMu.Unlock()
	return nil
}

// store must be called with mu held
func (c *MemoryCache) store(key string, value []byte, tags []string) {
	c.untag(key)
	c.lru.Add(key, value)

	for _, tag := range tags {
		keys, ok := c.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	c.keyTags[key] = append([]string(nil), tags...)
}

// pruneEvicted must be called with mu held
func (c *MemoryCache) pruneEvicted() {
	c.evictMu.Lock()
	evicted := c.evicted
	c.evicted = nil
	c.evictMu.Unlock()

	for _, key := range evicted {
		c.untag(key)
	}
}

// untag must be called with mu held
func (c *MemoryCache) untag(key string) {
	for _, tag := range c.keyTags[key] {
		if keys, ok := c.tags[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.tags, tag)
			}
		}
	}
	delete(c.keyTags, key)
}

func (c *MemoryCache) onEvict(key string, _ []byte) {
	c.evictMu.Lock()
	c.evicted = append(c.evicted, key)
	c.evictMu.Unlock()
}
