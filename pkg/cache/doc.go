// Package cache provides tag-aware caches for user reads.
//
// Every entry is stored with a set of tags. InvalidateTags drops all entries
// carrying any of the given tags, which lets writers invalidate a single
// user and every list read in one call.
//
// Backends:
//
//   - MemoryCache: in-process expirable LRU
//   - RedisCache: shared cache, tag membership kept in Redis sets
//   - Tiered: MemoryCache in front of RedisCache
//
// Wrap a backend with Instrument to count hits and misses.
package cache
