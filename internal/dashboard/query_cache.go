package dashboard

import (
	"context"
	"strings"
	"sync"

	"consent-app/internal/optimistic"
)

// QueryCache memoises list queries under composite keys such as
// ["websites", "42"]. Invalidating a key drops it and every key below it.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]any
}

func NewQueryCache() *QueryCache {
	return &QueryCache{entries: map[string]any{}}
}

func cacheKey(key optimistic.CacheKey) string {
	return strings.Join(key, "\x00")
}

func (q *QueryCache) Get(key optimistic.CacheKey) (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.entries[cacheKey(key)]
	return v, ok
}

func (q *QueryCache) Set(key optimistic.CacheKey, v any) {
	q.mu.Lock()
	q.entries[cacheKey(key)] = v
	q.mu.Unlock()
}

func (q *QueryCache) Invalidate(_ context.Context, key optimistic.CacheKey) error {
	prefix := cacheKey(key)
	q.mu.Lock()
	defer q.mu.Unlock()
	for k := range q.entries {
		if k == prefix || strings.HasPrefix(k, prefix+"\x00") {
			delete(q.entries, k)
		}
	}
	return nil
}

// cached returns the value under key, loading and storing it on a miss.
func cached[T any](ctx context.Context, q *QueryCache, key optimistic.CacheKey, load func(context.Context) (T, error)) (T, error) {
	if v, ok := q.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	q.Set(key, v)
	return v, nil
}
