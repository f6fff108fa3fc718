package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Key builds the cache key from the cache namespace, the instrument and the
// snapshot feature fingerprint. Any feature change yields a new key.
func Key(namespace, symbol, fingerprint string) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(symbol))
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	decision  Decision
	createdAt time.Time
	expiresAt time.Time
}

// CacheStats are monotonic counters; Expired counts entries dropped either
// lazily on Get or by the sweeper.
type CacheStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Expired uint64 `json:"expired"`
	Entries int    `json:"entries"`
}

// Cache is a TTL-keyed decision store. It is advisory only: it never blocks
// the pipeline and never serves an expired entry. Concurrent same-key writes
// are last-write-wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration

	hits    uint64
	misses  uint64
	expired uint64

	nowFn   func() time.Time
	stopCh  chan struct{}
	stopped sync.Once
}

// NewCache creates a cache with the given default TTL and starts a periodic
// sweep that bounds memory for unbounded key cardinality. Close stops it.
func NewCache(ttl, sweepEvery time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c := &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		nowFn:   time.Now,
		stopCh:  make(chan struct{}),
	}
	if sweepEvery > 0 {
		go c.sweepLoop(sweepEvery)
	}
	return c
}

// Get returns the cached decision for key if present and unexpired.
func (c *Cache) Get(key string) (Decision, bool) {
	now := c.nowFn()
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return Decision{}, false
	}
	if !now.Before(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a fresher Put may have raced us.
		if cur, still := c.entries[key]; still && !now.Before(cur.expiresAt) {
			delete(c.entries, key)
			c.expired++
		}
		c.misses++
		c.mu.Unlock()
		return Decision{}, false
	}
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return entry.decision, true
}

// Put stores d under key with the given TTL (the cache default when ttl<=0).
func (c *Cache) Put(key string, d Decision, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.nowFn()
	c.mu.Lock()
	c.entries[key] = cacheEntry{decision: d, createdAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
}

func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Expired: c.expired, Entries: len(c.entries)}
}

// Close stops the background sweeper. Idempotent.
func (c *Cache) Close() {
	c.stopped.Do(func() { close(c.stopCh) })
}

func (c *Cache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	now := c.nowFn()
	c.mu.Lock()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			c.expired++
		}
	}
	c.mu.Unlock()
}
