package cache

import (
	"sync"
	"time"

	"github.com/use-agent/scrapedesk/models"
)

// entry holds a cached history entry with its fetch timestamp.
type entry struct {
	log       *models.LogEntry
	createdAt time.Time
}

// Cache is an in-memory cache of full history entries keyed by log id.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Cache holding at most maxEntries entries for ttl each.
// A background goroutine evicts expired entries every ttl/2 (at least
// once a minute) until Close is called.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Get returns the entry for id if present and not expired.
// A zero ttl disables caching entirely.
func (c *Cache) Get(id string) (*models.LogEntry, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[id]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.log, true
}

// Set stores an entry. If the cache is at capacity, a random entry is
// evicted to make room.
func (c *Cache) Set(log *models.LogEntry) {
	if c.ttl <= 0 || log == nil || log.ID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[log.ID]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[log.ID] = &entry{
		log:       log,
		createdAt: c.now(),
	}
}

// Delete drops id from the cache.
func (c *Cache) Delete(id string) {
	c.mu.Lock()
	delete(c.store, id)
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.store = make(map[string]*entry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop() {
	interval := c.ttl / 2
	if interval > time.Minute || interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}
