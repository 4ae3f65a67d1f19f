// Package cache provides an in-process TTL cache for computed responses.
//
// Entries live until their expiry or until explicitly deleted; nothing is
// persisted across restarts. The Cache interface exists so a distributed
// store could replace the in-memory map without touching callers.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Cache is an ephemeral key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key, or false if absent or expired.
	Get(key string) (any, bool)
	// Set stores value under key for the given ttl, overwriting any
	// existing entry.
	Set(key string, value any, ttl time.Duration)
	// Delete removes the entry for key, if any.
	Delete(key string)
	// DeletePrefix removes every entry whose key starts with prefix.
	DeletePrefix(prefix string)
}

type entry struct {
	value  any
	expiry time.Time
}

// Memory is a mutex-guarded in-process Cache.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry), now: time.Now}
}

// Get returns the value for key. An entry past its expiry is evicted and
// reported absent.
func (c *Memory) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiry) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, overwriting unconditionally.
func (c *Memory) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiry: c.now().Add(ttl)}
}

// Delete removes the entry for key.
func (c *Memory) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeletePrefix removes every entry whose key starts with prefix.
func (c *Memory) DeletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of stored entries, including any not yet evicted
// past-expiry ones.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
