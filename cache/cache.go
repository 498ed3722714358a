// Package cache implements the process-wide TTL cache for reads, listings,
// searches, and Sulpher query results. Invalidation is tag-based: each
// entry records the entity names it depends on, and a write invalidates
// every entry tagged with the mutated entity. This is the stricter
// replacement for substring-matching invalidation chosen for this
// rewrite; entries built around a cache-by-substring match are not part
// of the design.
//
// No third-party TTL cache library appears anywhere in the reference
// corpus, so this is built directly on sync.Mutex and time.Time rather
// than reaching for an unfamiliar dependency; see DESIGN.md.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
	tags      map[string]bool
}

// Cache is a thread-safe TTL map with tag-based bulk invalidation.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry), now: time.Now}
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for the given TTL, tagged with the given
// entity names for later invalidation. A query-result entry should be
// tagged with nothing (or a tag no write ever invalidates) so it expires
// by TTL alone, reflecting that graph queries are snapshot-in-time.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration, tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}
	c.entries[key] = entry{
		value:     value,
		expiresAt: c.now().Add(ttl),
		tags:      tagSet,
	}
}

// InvalidateTag removes every entry tagged with tag (typically an entity
// name), called after any write to that entity.
func (c *Cache) InvalidateTag(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if e.tags[tag] {
			delete(c.entries, key)
		}
	}
}

// Delete removes a single key unconditionally.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep removes every expired entry, intended to run periodically so the
// map does not grow unbounded with entries nobody ever re-reads.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Len reports the current entry count, including not-yet-swept expired
// entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
