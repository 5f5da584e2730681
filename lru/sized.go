package lru

// SizeFunc computes the cached size of a value in bytes.
type SizeFunc[V any] func(V) int64

// BytesLen is the stock SizeFunc for byte slices.
func BytesLen(b []byte) int64 { return int64(len(b)) }

// sizedItemEstimate is the assumed typical entry size used to dimension the
// access-log bookkeeping of a SizedCache. It never influences eviction,
// which is driven purely by bytes.
const sizedItemEstimate = 512

// SizedCache is a byte-budgeted LRU cache. It shares Cache's recency
// machinery but bounds the sum of value sizes instead of the entry count.
// It is not safe for concurrent use.
type SizedCache[K comparable, V any] struct {
	cache            *Cache[K, V]
	sizer            SizeFunc[V]
	maxSize          int64
	afterCleanupSize int64
	totalSize        int64
}

// NewSized creates a cache holding at most maxSize bytes of values as
// measured by sizer, with the cleanup target defaulting to 80% of maxSize.
func NewSized[K comparable, V any](maxSize int64, sizer SizeFunc[V]) *SizedCache[K, V] {
	return NewSizedWithTarget[K, V](maxSize, 0, sizer)
}

// NewSizedWithTarget creates a cache holding at most maxSize bytes that
// shrinks to afterCleanupSize bytes when it overflows. A target of 0
// selects the default of 80% of maxSize.
func NewSizedWithTarget[K comparable, V any](maxSize, afterCleanupSize int64, sizer SizeFunc[V]) *SizedCache[K, V] {
	if sizer == nil {
		panic("lru: nil SizeFunc")
	}
	s := &SizedCache[K, V]{
		cache: New[K, V](1),
		sizer: sizer,
	}
	s.cache.onRemove = func(_ K, value V) {
		s.totalSize -= s.sizer(value)
	}
	s.setLimits(maxSize, afterCleanupSize)
	return s
}

func (s *SizedCache[K, V]) setLimits(maxSize, afterCleanupSize int64) {
	if maxSize < 1 {
		maxSize = 1
	}
	if afterCleanupSize <= 0 {
		afterCleanupSize = (maxSize*4 + 4) / 5 // ceil(0.8 * maxSize)
	}
	if afterCleanupSize > maxSize {
		afterCleanupSize = maxSize
	}
	s.maxSize = maxSize
	s.afterCleanupSize = afterCleanupSize

	estimate := maxSize / sizedItemEstimate
	if estimate < 1 {
		estimate = 1
	}
	s.cache.setLimits(int(estimate), 0)
}

// Add stores value under key. It reports whether the value was stored.
func (s *SizedCache[K, V]) Add(key K, value V) bool {
	return s.AddWithDisposer(key, value, nil)
}

// AddWithDisposer stores value under key and registers d to release it on
// removal. Values at least as large as the after-cleanup target are
// rejected outright and never stored, since a single such entry would
// evict everything else by itself; the disposer still runs for a rejected
// value because the caller has handed over ownership. Any existing entry
// for key is removed either way. It reports whether the value was stored.
func (s *SizedCache[K, V]) AddWithDisposer(key K, value V, d Disposer[K, V]) bool {
	size := s.sizer(value)
	if size >= s.afterCleanupSize {
		s.cache.Remove(key)
		if d != nil {
			d.Dispose(key, value)
		}
		return false
	}
	if _, ok := s.cache.entries[key]; ok {
		s.cache.removeKey(key)
	}
	s.cache.install(key, value, d)
	s.totalSize += size
	if s.totalSize > s.maxSize {
		s.Cleanup()
	}
	return true
}

// Get returns the value stored under key and records an access.
func (s *SizedCache[K, V]) Get(key K) (V, bool) { return s.cache.Get(key) }

// Peek returns the value stored under key without recording an access.
func (s *SizedCache[K, V]) Peek(key K) (V, bool) { return s.cache.Peek(key) }

// Contains reports whether key is cached, without recording an access.
func (s *SizedCache[K, V]) Contains(key K) bool { return s.cache.Contains(key) }

// Remove evicts key, firing its disposer, and reports whether it was present.
func (s *SizedCache[K, V]) Remove(key K) bool { return s.cache.Remove(key) }

// Clear removes every entry in LRU order, oldest first.
func (s *SizedCache[K, V]) Clear() { s.cache.Clear() }

// Len returns the number of cached entries.
func (s *SizedCache[K, V]) Len() int { return s.cache.Len() }

// Keys returns the cached keys, most recently used first.
func (s *SizedCache[K, V]) Keys() []K { return s.cache.Keys() }

// Size returns the combined size of all cached values in bytes.
func (s *SizedCache[K, V]) Size() int64 { return s.totalSize }

// Cleanup evicts least-recently-used entries while the combined size
// exceeds the after-cleanup target.
func (s *SizedCache[K, V]) Cleanup() {
	for s.totalSize > s.afterCleanupSize && len(s.cache.entries) > 0 {
		s.cache.evictLRU()
	}
}

// Resize updates the byte limit and cleanup target (0 selects the 80%
// default), re-derives the bookkeeping bounds, and evicts immediately if
// the cache is now over its new limits.
func (s *SizedCache[K, V]) Resize(maxSize, afterCleanupSize int64) {
	s.setLimits(maxSize, afterCleanupSize)
	if len(s.cache.queue) > s.cache.compactLen {
		s.cache.compactQueue()
	}
	if s.totalSize > s.maxSize {
		s.Cleanup()
	}
}
