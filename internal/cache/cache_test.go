package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_BasicGetPut(t *testing.T) {
	c := New[string](10, time.Hour)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", "1")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	c.Put("a", "2")
	v, _ = c.Get("a")
	assert.Equal(t, "2", v)
}

func TestCache_TTLExpiration(t *testing.T) {
	c := New[int](10, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("k", 1)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)

	c.mu.RLock()
	_, exists := c.entries["k"]
	c.mu.RUnlock()
	assert.False(t, exists)
}

func TestCache_LRUEviction(t *testing.T) {
	c := New[int](2, time.Hour)
	c.Put("a", 1)
	c.Put("b", 2)

	// Touch "a" so "b" becomes the oldest.
	_, _ = c.Get("a")
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_ClearPurge(t *testing.T) {
	c := New[int](0, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("a", 1)
	c.Put("b", 2)

	now = now.Add(time.Hour)
	c.Put("c", 3)
	assert.Equal(t, 2, c.Purge())
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Clear())
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCache_Stats(t *testing.T) {
	c := New[int](5, time.Hour)
	c.Put("a", 1)
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 0.5, s.HitRate, 1e-9)
}

func TestKey(t *testing.T) {
	a := Key([]byte("abc"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key([]byte("abc")))
	assert.NotEqual(t, a, Key([]byte("abd")))
	assert.NotEqual(t, a, Key([]byte("abc"), "schema"))
}

func TestMemo_CachesValue(t *testing.T) {
	m := NewMemo(New[int](10, time.Hour))
	var calls atomic.Int32
	fn := func() (int, error) {
		calls.Add(1)
		return 42, nil
	}

	v, hit, err := m.Do("k", fn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, v)

	v, hit, err = m.Do("k", fn)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMemo_ErrorsNotCached(t *testing.T) {
	m := NewMemo(New[int](10, time.Hour))
	fail := true
	fn := func() (int, error) {
		if fail {
			return 0, eris.New("boom")
		}
		return 7, nil
	}

	_, _, err := m.Do("k", fn)
	require.Error(t, err)

	fail = false
	v, hit, err := m.Do("k", fn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
}

func TestMemo_ConcurrentCallsAreIdempotent(t *testing.T) {
	m := NewMemo(New[int](10, time.Hour))
	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := m.Do("same", func() (int, error) {
				time.Sleep(5 * time.Millisecond)
				return 99, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 99, v)
	}
}

func TestMemo_NilCache(t *testing.T) {
	m := NewMemo[int](nil)
	var calls int
	for range 2 {
		_, hit, err := m.Do("k", func() (int, error) {
			calls++
			return 1, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 2, calls)
	assert.Nil(t, m.Cache())
}
