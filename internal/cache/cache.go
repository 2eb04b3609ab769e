// SPDX-License-Identifier: MIT

// Package cache holds the hot read path of the API: the latest telemetry
// snapshot and status documents, already JSON-encoded. A Redis backend lets
// several daemon replicas share the hot state; the in-memory backend is the
// default for single-node deployments.
package cache

import (
	"sync"
	"time"
)

// Well-known keys.
const (
	KeyLatestSample = "spiritd:latest_sample"
	KeyStatus       = "spiritd:status"
)

// Cache stores pre-encoded JSON documents with a TTL.
type Cache interface {
	// Get retrieves a document. Returns false if not found or expired.
	Get(key string) ([]byte, bool)
	// Set stores a document with the specified TTL.
	Set(key string, doc []byte, ttl time.Duration)
	// Delete removes a document.
	Delete(key string)
	// Stats returns cache statistics.
	Stats() Stats
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Evictions   int64 `json:"evictions"`
	CurrentSize int   `json:"current_size"`
}

type entry struct {
	doc        []byte
	expiration time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiration)
}

// memoryCache is the in-process Cache implementation.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   Stats
	stop    chan struct{}
}

// NewMemoryCache creates an in-memory cache. cleanupInterval > 0 starts a
// janitor goroutine that evicts expired documents; Stop shuts it down.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.expired() {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.doc, true
}

func (c *memoryCache) Set(key string, doc []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{doc: doc, expiration: time.Now().Add(ttl)}
	c.stats.Sets++
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

func (c *memoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			for key, e := range c.entries {
				if e.expired() {
					delete(c.entries, key)
					c.stats.Evictions++
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

// Stop terminates the janitor goroutine.
func (c *memoryCache) Stop() {
	close(c.stop)
}
