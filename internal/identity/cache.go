// ABOUTME: Bounded, TTL-expiring identity cache used by the Resolver.
// ABOUTME: Backed by hashicorp/golang-lru/v2 expirable LRU; safe for concurrent use.
package identity

import (
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache holds recently resolved users keyed by id. Implementations must be
// safe for concurrent use. Values are copies; callers never share a *User.
type Cache interface {
	Get(id uuid.UUID) (User, bool)
	Set(id uuid.UUID, u User)
	Evict(id uuid.UUID)
	Len() int
}

// LRUCache is a size- and TTL-bounded Cache.
type LRUCache struct {
	lru *lru.LRU[uuid.UUID, User]
}

// NewLRUCache returns a cache holding at most size entries, each for at most ttl.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = 1
	}
	return &LRUCache{lru: lru.NewLRU[uuid.UUID, User](size, nil, ttl)}
}

// Get returns the cached user for id, if present and unexpired.
func (c *LRUCache) Get(id uuid.UUID) (User, bool) {
	return c.lru.Get(id)
}

// Set stores u under id, replacing any existing entry and resetting its TTL.
func (c *LRUCache) Set(id uuid.UUID, u User) {
	c.lru.Add(id, u)
}

// Evict removes id from the cache.
func (c *LRUCache) Evict(id uuid.UUID) {
	c.lru.Remove(id)
}

// Len returns the number of entries, including ones not yet reaped.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}

// NopCache never stores anything. Useful where staleness is unacceptable.
type NopCache struct{}

func (NopCache) Get(uuid.UUID) (User, bool) { return User{}, false }
func (NopCache) Set(uuid.UUID, User)        {}
func (NopCache) Evict(uuid.UUID)            {}
func (NopCache) Len() int                   { return 0 }
