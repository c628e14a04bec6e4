package cache

import (
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Memo wraps a pure computation with a Cache. Concurrent calls for the same
// key share one computation; errors are never cached, so a failed key is
// recomputed on the next call.
type Memo[V any] struct {
	cache *Cache[V]
	group singleflight.Group
}

// NewMemo returns a Memo backed by c. A nil c disables caching while still
// deduplicating concurrent calls.
func NewMemo[V any](c *Cache[V]) *Memo[V] {
	return &Memo[V]{cache: c}
}

// Do returns the cached value for key or computes it with fn. hit reports
// whether the value came from the cache.
func (m *Memo[V]) Do(key string, fn func() (V, error)) (value V, hit bool, err error) {
	if m.cache != nil {
		if v, ok := m.cache.Get(key); ok {
			return v, true, nil
		}
	}

	res, err, shared := m.group.Do(key, func() (any, error) {
		v, err := fn()
		if err != nil {
			return v, err
		}
		if m.cache != nil {
			m.cache.Put(key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	if shared {
		zap.L().Debug("memo: shared computation", zap.String("key", shortKey(key)))
	}
	return res.(V), false, nil
}

// Cache returns the backing cache, which may be nil.
func (m *Memo[V]) Cache() *Cache[V] {
	return m.cache
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
