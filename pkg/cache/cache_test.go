package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalog/pkg/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newCache(t *testing.T, max int) (*cache.Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := cache.New(cache.Options{MaxEntries: max, Clock: clock.Now})
	t.Cleanup(c.Close)
	return c, clock
}

func TestSetAndGet(t *testing.T) {
	c, _ := newCache(t, 0)

	require.True(t, c.Set("item:1", "widget", time.Minute, cache.Normal))

	v, ok := c.Get("item:1")
	require.True(t, ok)
	assert.Equal(t, "widget", v)

	_, ok = c.Get("item:2")
	assert.False(t, ok)
}

func TestEntryExpires(t *testing.T) {
	c, clock := newCache(t, 0)
	c.Set("all", []int{1, 2}, time.Minute, cache.High)

	clock.Advance(59 * time.Second)
	_, ok := c.Get("all")
	assert.True(t, ok, "entry should still be fresh")

	clock.Advance(time.Second)
	_, ok = c.Get("all")
	assert.False(t, ok, "entry should expire at its absolute deadline")
	assert.Equal(t, 0, c.Len(), "expired entry is removed on access")
}

func TestNonPositiveTTLIsNotStored(t *testing.T) {
	c, _ := newCache(t, 0)
	assert.False(t, c.Set("k", 1, 0, cache.Normal))
	assert.Equal(t, 0, c.Len())
}

func TestInvalidateIsIdempotent(t *testing.T) {
	c, _ := newCache(t, 0)
	c.Set("item:1", 1, time.Minute, cache.Normal)

	c.Invalidate("item:1")
	c.Invalidate("item:1")
	c.Invalidate("never-set")

	_, ok := c.Get("item:1")
	assert.False(t, ok)
}

func TestEvictsLowestPriorityFirst(t *testing.T) {
	c, _ := newCache(t, 3)

	c.Set("low", 1, time.Hour, cache.Low)
	c.Set("normal", 2, time.Hour, cache.Normal)
	c.Set("high", 3, time.Hour, cache.High)

	require.True(t, c.Set("new", 4, time.Hour, cache.Normal))

	_, ok := c.Get("low")
	assert.False(t, ok, "low priority entry should be evicted")
	for _, k := range []string{"normal", "high", "new"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
}

func TestEvictionPrefersEarliestExpiryWithinPriority(t *testing.T) {
	c, _ := newCache(t, 2)

	c.Set("late", 1, time.Hour, cache.Normal)
	c.Set("soon", 2, time.Minute, cache.Normal)
	c.Set("new", 3, time.Hour, cache.Normal)

	_, ok := c.Get("soon")
	assert.False(t, ok)
	_, ok = c.Get("late")
	assert.True(t, ok)
}

func TestExpiredEntriesPurgedBeforeEviction(t *testing.T) {
	c, clock := newCache(t, 2)

	c.Set("expiring", 1, time.Second, cache.High)
	c.Set("keep", 2, time.Hour, cache.Low)
	clock.Advance(2 * time.Second)

	require.True(t, c.Set("new", 3, time.Hour, cache.Normal))
	_, ok := c.Get("keep")
	assert.True(t, ok, "a live low-priority entry survives when an expired one can go")
}

func TestNeverRemoveIsNotEvicted(t *testing.T) {
	c, _ := newCache(t, 1)

	c.Set("pinned", 1, time.Hour, cache.NeverRemove)
	assert.False(t, c.Set("other", 2, time.Hour, cache.Low))

	_, ok := c.Get("pinned")
	assert.True(t, ok)

	// Overwriting an existing key never needs room.
	assert.True(t, c.Set("pinned", 5, time.Hour, cache.NeverRemove))
}

func TestSetIfUnchangedRejectsAfterInvalidation(t *testing.T) {
	c, _ := newCache(t, 0)

	stamp := c.Stamp()
	c.Invalidate("item:1") // a write commits while the reader is loading

	assert.False(t, c.SetIfUnchanged(stamp, "item:1", "stale", time.Minute, cache.Normal))
	_, ok := c.Get("item:1")
	assert.False(t, ok)

	fresh := c.Stamp()
	assert.True(t, c.SetIfUnchanged(fresh, "item:1", "fresh", time.Minute, cache.Normal))
}

func TestClear(t *testing.T) {
	c, _ := newCache(t, 0)
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("item:%d", i), i, time.Minute, cache.Normal)
	}
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestJanitorSweepsExpiredEntries(t *testing.T) {
	c := cache.New(cache.Options{SweepInterval: 10 * time.Millisecond})
	defer c.Close()

	c.Set("short", 1, 5*time.Millisecond, cache.Normal)
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newCache(t, 64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("item:%d", (g*i)%100)
				c.Set(key, i, time.Minute, cache.Priority(i%3))
				c.Get(key)
				if i%7 == 0 {
					c.Invalidate(key, "all")
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 64)
}
