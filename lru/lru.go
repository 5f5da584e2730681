// Package lru provides bounded in-memory caches with least-recently-used
// eviction: Cache limits the number of entries, SizedCache limits their
// combined byte size.
//
// Recency is tracked through an append-only access log paired with per-key
// reference counts instead of an intrusive linked list. The log is compacted
// lazily once it grows past four times the entry limit, which keeps each
// access O(1) amortized at the cost of a bounded, temporary memory overhead.
//
// Eviction uses hysteresis: overflowing the limit shrinks the cache down to
// a lower watermark (80% of the limit by default), so a steady stream of
// inserts pays for eviction in batches rather than once per insert.
package lru

// Disposer releases a value that is leaving the cache. It is invoked
// exactly once per discarded entry, with the key and value being dropped.
type Disposer[K comparable, V any] interface {
	Dispose(key K, value V)
}

// DisposerFunc adapts a function to the Disposer interface.
type DisposerFunc[K comparable, V any] func(key K, value V)

func (f DisposerFunc[K, V]) Dispose(key K, value V) { f(key, value) }

// compactFactor bounds the access log relative to the entry limit.
const compactFactor = 4

// Cache is a count-bounded LRU cache. It is not safe for concurrent use.
type Cache[K comparable, V any] struct {
	maxCount     int
	afterCleanup int
	compactLen   int

	entries   map[K]V
	disposers map[K]Disposer[K, V]
	queue     []K       // access log, oldest first
	refs      map[K]int // outstanding log occurrences per key

	// onRemove runs before the entry's disposer on every removal.
	// Used by SizedCache for byte accounting.
	onRemove func(K, V)
}

// New creates a cache holding at most maxCount entries, with the cleanup
// target defaulting to 80% of maxCount.
func New[K comparable, V any](maxCount int) *Cache[K, V] {
	return NewWithTarget[K, V](maxCount, 0)
}

// NewWithTarget creates a cache holding at most maxCount entries that
// shrinks to afterCleanupCount entries when it overflows. A target of 0
// selects the default of 80% of maxCount.
func NewWithTarget[K comparable, V any](maxCount, afterCleanupCount int) *Cache[K, V] {
	c := &Cache[K, V]{
		entries:   make(map[K]V),
		disposers: make(map[K]Disposer[K, V]),
		refs:      make(map[K]int),
	}
	c.setLimits(maxCount, afterCleanupCount)
	return c
}

func (c *Cache[K, V]) setLimits(maxCount, afterCleanupCount int) {
	if maxCount < 1 {
		maxCount = 1
	}
	if afterCleanupCount <= 0 {
		afterCleanupCount = (maxCount*4 + 4) / 5 // ceil(0.8 * maxCount)
	}
	if afterCleanupCount > maxCount {
		afterCleanupCount = maxCount
	}
	c.maxCount = maxCount
	c.afterCleanup = afterCleanupCount
	c.compactLen = compactFactor * maxCount
}

// Add stores value under key, replacing and disposing any existing entry
// for the same key first.
func (c *Cache[K, V]) Add(key K, value V) {
	c.AddWithDisposer(key, value, nil)
}

// AddWithDisposer stores value under key and registers d to release it
// when the entry is removed. If key is already present the old entry is
// removed first, firing its own disposer synchronously, so a caller can
// re-open a resource under the same key without leaking the old one.
func (c *Cache[K, V]) AddWithDisposer(key K, value V, d Disposer[K, V]) {
	if _, ok := c.entries[key]; ok {
		c.removeKey(key)
	}
	c.install(key, value, d)
	if len(c.entries) > c.maxCount {
		c.Cleanup()
	}
}

func (c *Cache[K, V]) install(key K, value V, d Disposer[K, V]) {
	c.entries[key] = value
	if d != nil {
		c.disposers[key] = d
	}
	c.recordAccess(key)
}

// Get returns the value stored under key and records an access: recency is
// last touched, not last inserted.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	value, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.recordAccess(key)
	return value, true
}

// Peek returns the value stored under key without recording an access.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	value, ok := c.entries[key]
	return value, ok
}

// Contains reports whether key is cached, without recording an access.
func (c *Cache[K, V]) Contains(key K) bool {
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int { return len(c.entries) }

// Keys returns the cached keys, most recently used first.
func (c *Cache[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.entries))
	yielded := make(map[K]struct{}, len(c.entries))
	for i := len(c.queue) - 1; i >= 0; i-- {
		key := c.queue[i]
		if _, ok := yielded[key]; ok {
			continue
		}
		yielded[key] = struct{}{}
		if _, ok := c.entries[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// Remove evicts key, firing its disposer. It reports whether the key was
// present; removing an absent key is not an error.
func (c *Cache[K, V]) Remove(key K) bool {
	if _, ok := c.entries[key]; !ok {
		return false
	}
	c.removeKey(key)
	return true
}

// Cleanup evicts least-recently-used entries until at most the
// after-cleanup target remains.
func (c *Cache[K, V]) Cleanup() {
	for len(c.entries) > c.afterCleanup {
		c.evictLRU()
	}
}

// Clear removes every entry in LRU order, oldest first, firing each
// entry's disposer.
func (c *Cache[K, V]) Clear() {
	for len(c.entries) > 0 {
		c.evictLRU()
	}
	c.queue = c.queue[:0]
	clear(c.refs)
}

// Resize updates the entry limit and cleanup target (0 selects the 80%
// default), then compacts and evicts immediately if the cache is now over
// its new limits.
func (c *Cache[K, V]) Resize(maxCount, afterCleanupCount int) {
	c.setLimits(maxCount, afterCleanupCount)
	if len(c.queue) > c.compactLen {
		c.compactQueue()
	}
	if len(c.entries) > c.maxCount {
		c.Cleanup()
	}
}

func (c *Cache[K, V]) recordAccess(key K) {
	c.queue = append(c.queue, key)
	c.refs[key]++
	if len(c.queue) > c.compactLen {
		c.compactQueue()
	}
}

// compactQueue rewrites the access log keeping only the newest occurrence
// of each live key. Walking oldest to newest and dropping occurrences
// while a key's reference count is above one leaves exactly the last one.
func (c *Cache[K, V]) compactQueue() {
	compacted := make([]K, 0, len(c.entries))
	for _, key := range c.queue {
		n, ok := c.refs[key]
		if !ok {
			continue // stale occurrence of a removed key
		}
		if n > 1 {
			c.refs[key] = n - 1
			continue
		}
		compacted = append(compacted, key)
	}
	c.queue = compacted
}

// evictLRU removes the least recently used entry: the first key popped off
// the log whose popped occurrence is its only outstanding one.
func (c *Cache[K, V]) evictLRU() {
	for len(c.queue) > 0 {
		key := c.queue[0]
		c.queue = c.queue[1:]
		n, ok := c.refs[key]
		if !ok {
			continue
		}
		if n > 1 {
			c.refs[key] = n - 1
			continue
		}
		c.removeKey(key)
		return
	}
}

func (c *Cache[K, V]) removeKey(key K) {
	value := c.entries[key]
	delete(c.entries, key)
	delete(c.refs, key)
	d := c.disposers[key]
	delete(c.disposers, key)
	if c.onRemove != nil {
		c.onRemove(key, value)
	}
	if d != nil {
		d.Dispose(key, value)
	}
}
