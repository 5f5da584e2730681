package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bytesOf(n int) []byte { return make([]byte, n) }

func TestSizedCacheAddGet(t *testing.T) {
	c := NewSized[string](100, BytesLen)

	require.True(t, c.Add("a", bytesOf(10)))
	require.True(t, c.Add("b", bytesOf(20)))

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Len(t, v, 10)
	assert.Equal(t, int64(30), c.Size())
	assert.Equal(t, 2, c.Len())
}

func TestSizedCacheEvictsByBytes(t *testing.T) {
	c := NewSizedWithTarget[int](100, 60, BytesLen)

	for i := 0; i < 5; i++ {
		require.True(t, c.Add(i, bytesOf(20)))
	}
	assert.Equal(t, int64(100), c.Size())

	// The next insert overflows and shrinks the total below the target.
	require.True(t, c.Add(5, bytesOf(20)))
	assert.LessOrEqual(t, c.Size(), int64(60))
	assert.False(t, c.Contains(0))
	assert.False(t, c.Contains(1))
	assert.True(t, c.Contains(5))
}

func TestSizedCacheRejectsOversizedValue(t *testing.T) {
	var disposed [][]byte
	d := DisposerFunc[string, []byte](func(_ string, value []byte) {
		disposed = append(disposed, value)
	})

	c := NewSizedWithTarget[string](100, 60, BytesLen)

	// A value at the target would evict everything else by itself.
	stored := c.AddWithDisposer("big", bytesOf(60), d)
	assert.False(t, stored)
	assert.False(t, c.Contains("big"))
	assert.Equal(t, int64(0), c.Size())

	// Ownership transferred regardless, so the disposer fired.
	require.Len(t, disposed, 1)
	assert.Len(t, disposed[0], 60)
}

func TestSizedCacheRejectDisplacesExistingEntry(t *testing.T) {
	c := NewSizedWithTarget[string](100, 60, BytesLen)

	require.True(t, c.Add("k", bytesOf(10)))
	assert.False(t, c.Add("k", bytesOf(60)))

	// The old entry is gone and nothing replaced it.
	assert.False(t, c.Contains("k"))
	assert.Equal(t, int64(0), c.Size())
}

func TestSizedCacheReplaceAdjustsSize(t *testing.T) {
	c := NewSized[string](100, BytesLen)

	require.True(t, c.Add("k", bytesOf(10)))
	require.True(t, c.Add("k", bytesOf(30)))

	assert.Equal(t, int64(30), c.Size())
	assert.Equal(t, 1, c.Len())
}

func TestSizedCacheRemoveAdjustsSize(t *testing.T) {
	c := NewSized[string](100, BytesLen)

	require.True(t, c.Add("a", bytesOf(10)))
	require.True(t, c.Add("b", bytesOf(20)))

	assert.True(t, c.Remove("a"))
	assert.Equal(t, int64(20), c.Size())

	c.Clear()
	assert.Equal(t, int64(0), c.Size())
	assert.Equal(t, 0, c.Len())
}

func TestSizedCacheRecencyByTouch(t *testing.T) {
	c := NewSizedWithTarget[int](100, 40, BytesLen)

	for i := 0; i < 5; i++ {
		require.True(t, c.Add(i, bytesOf(20)))
	}
	_, ok := c.Get(0)
	require.True(t, ok)

	// Overflow: eviction starts from the least recently touched, not 0.
	require.True(t, c.Add(5, bytesOf(20)))
	assert.True(t, c.Contains(0))
	assert.False(t, c.Contains(1))
	assert.LessOrEqual(t, c.Size(), int64(40))
}

func TestSizedCacheResize(t *testing.T) {
	c := NewSized[int](1000, BytesLen)
	for i := 0; i < 10; i++ {
		require.True(t, c.Add(i, bytesOf(100)))
	}
	assert.Equal(t, int64(1000), c.Size())

	c.Resize(500, 200)
	assert.LessOrEqual(t, c.Size(), int64(200))
	assert.True(t, c.Contains(9))
	assert.False(t, c.Contains(0))
}

func TestSizedCacheNilSizerPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewSized[string, []byte](10, nil)
	})
}

func TestSizedCacheBookkeepingEstimate(t *testing.T) {
	// Tiny byte budgets still get a working recency log.
	c := NewSized[string](10, BytesLen)
	require.True(t, c.Add("a", bytesOf(3)))
	require.True(t, c.Add("b", bytesOf(3)))

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Len(t, v, 3)
}
