package ingest

import (
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starlog-io/starlog/internal/canonical"
)

// DefaultRecencyCacheSize bounds the number of entity timestamps kept
// in memory. Archive replays revisit the same handful of entities in
// bursts, so a modest cache absorbs most stale lines before they cost
// a transaction.
const DefaultRecencyCacheSize = 10240

// ErrInvalidCacheSize is returned when a cache is created with a
// non-positive capacity.
var ErrInvalidCacheSize = errors.New("cache size must be greater than zero")

// RecencyCache remembers the newest timestamp seen per entity and
// event kind. It is an optimistic filter in front of the database
// freshness gate: a miss or a newer timestamp lets the event proceed,
// the database guard stays authoritative.
//
// Entries are updated even when the surrounding transaction later
// rolls back. That can only make the cache claim a newer timestamp
// than the database holds, which suppresses retries of events the
// gate would reject anyway.
type RecencyCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, string]
}

// NewRecencyCache creates a cache bounded to size entries.
func NewRecencyCache(size int) (*RecencyCache, error) {
	if size <= 0 {
		return nil, ErrInvalidCacheSize
	}

	inner, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}

	return &RecencyCache{lru: inner}, nil
}

// IsNewerAndUpdate reports whether timestamp is newer than the cached
// one for (kind, key, event), updating the cache when it is. Unknown
// entries and unparseable timestamps are treated as newer so the
// database gate makes the final call. The outer mutex makes the
// compare-and-update atomic; the LRU's own locking only covers single
// operations.
func (c *RecencyCache) IsNewerAndUpdate(kind, key, event, timestamp string) bool {
	cacheKey := kind + "|" + key + "|" + event

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.lru.Get(cacheKey)
	if !ok {
		c.lru.Add(cacheKey, timestamp)

		return true
	}

	incoming, err := canonical.ParseTimestamp(timestamp)
	if err != nil {
		c.lru.Add(cacheKey, timestamp)

		return true
	}

	held, err := canonical.ParseTimestamp(cached)
	if err != nil {
		c.lru.Add(cacheKey, timestamp)

		return true
	}

	if incoming.After(held) {
		c.lru.Add(cacheKey, timestamp)

		return true
	}

	return false
}

// Get returns the cached timestamp for (kind, key, event), if any.
func (c *RecencyCache) Get(kind, key, event string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Get(kind + "|" + key + "|" + event)
}

// Len returns the number of cached entries.
func (c *RecencyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}

// Purge drops every cached entry.
func (c *RecencyCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
}
