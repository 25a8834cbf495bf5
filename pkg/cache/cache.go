// Package cache is a process-local, time-bounded key/value cache.
//
// Entries carry an absolute expiry and an eviction priority. The cache is a
// derived view: it never reports errors and may drop any entry at any time,
// so callers must always be prepared to fall back to the source of truth.
//
//	c := cache.New(cache.Options{MaxEntries: 1024, SweepInterval: time.Minute})
//	defer c.Close()
//
//	stamp := c.Stamp()
//	v := loadFromStore()
//	c.SetIfUnchanged(stamp, "item:1", v, 5*time.Minute, cache.Normal)
package cache

import (
	"sync"
	"time"

	"github.com/shashiranjanraj/catalog/pkg/metrics"
)

const driverName = "memory"

// Priority is a hint for which entries to drop first when the cache is full.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	// NeverRemove entries are only removed by expiry or invalidation.
	NeverRemove
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	case NeverRemove:
		return "never_remove"
	}
	return "unknown"
}

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the number of entries; <= 0 means unbounded.
	MaxEntries int
	// SweepInterval is how often expired entries are purged in the
	// background; <= 0 disables the janitor (expiry is still checked on Get).
	SweepInterval time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

type entry struct {
	value     any
	expiresAt time.Time
	priority  Priority
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	max     int
	now     func() time.Time

	// stamp advances on every invalidation; see SetIfUnchanged.
	stamp uint64

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a Cache and starts its janitor if configured.
func New(opts Options) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		max:     opts.MaxEntries,
		now:     opts.Clock,
		stop:    make(chan struct{}),
	}
	if c.now == nil {
		c.now = time.Now
	}

	if opts.SweepInterval > 0 {
		c.wg.Add(1)
		go c.janitor(opts.SweepInterval)
	}
	return c
}

// Get returns the value stored under key and true while the entry is fresh.
// An expired entry is removed and reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		metrics.CacheMisses.WithLabelValues(driverName).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(driverName).Inc()
	return e.value, true
}

// Set stores value under key until now+ttl. It reports false when the value
// was not stored (non-positive ttl, or the cache is full of entries that
// cannot be evicted).
func (c *Cache) Set(key string, value any, ttl time.Duration, priority Priority) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(key, value, ttl, priority)
}

// Stamp returns the current invalidation stamp.
func (c *Cache) Stamp() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stamp
}

// SetIfUnchanged stores value only if no invalidation happened since stamp
// was taken. A reader takes the stamp before loading from the source of
// truth, so a write that commits and invalidates while the load is in
// flight prevents the pre-write value from being cached.
func (c *Cache) SetIfUnchanged(stamp uint64, key string, value any, ttl time.Duration, priority Priority) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stamp != stamp {
		return false
	}
	return c.setLocked(key, value, ttl, priority)
}

// Invalidate removes keys. Absent keys are ignored.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stamp++
	for _, k := range keys {
		delete(c.entries, k)
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stamp++
	c.entries = make(map[string]*entry)
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the janitor. The cache stays usable afterwards.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
}

func (c *Cache) setLocked(key string, value any, ttl time.Duration, priority Priority) bool {
	if ttl <= 0 {
		return false
	}

	now := c.now()
	if _, exists := c.entries[key]; !exists && c.max > 0 && len(c.entries) >= c.max {
		c.purgeExpiredLocked(now)
		if len(c.entries) >= c.max && !c.evictLocked() {
			return false
		}
	}

	c.entries[key] = &entry{value: value, expiresAt: now.Add(ttl), priority: priority}
	return true
}

// evictLocked removes the lowest-priority entry, earliest expiry first.
func (c *Cache) evictLocked() bool {
	var (
		victim string
		best   *entry
	)
	for k, e := range c.entries {
		if e.priority == NeverRemove {
			continue
		}
		if best == nil || e.priority < best.priority ||
			(e.priority == best.priority && e.expiresAt.Before(best.expiresAt)) {
			victim, best = k, e
		}
	}
	if best == nil {
		return false
	}

	delete(c.entries, victim)
	metrics.CacheEvictions.WithLabelValues(driverName).Inc()
	return true
}

func (c *Cache) purgeExpiredLocked(now time.Time) int {
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache) janitor(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.purgeExpiredLocked(c.now())
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}
