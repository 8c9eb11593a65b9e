package optimistic

import "sync"

// Entity is any list-backed resource with a stable id.
type Entity interface {
	EntityID() string
}

// Store is the collection plus its setter. Load must return a copy the caller
// may modify; Save replaces the whole collection.
type Store[T Entity] interface {
	Load() []T
	Save(items []T)
}

// Collection is an in-memory Store.
type Collection[T Entity] struct {
	mu    sync.RWMutex
	items []T
}

func NewCollection[T Entity](items ...T) *Collection[T] {
	c := &Collection[T]{}
	c.Save(items)
	return c
}

func (c *Collection[T]) Load() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection[T]) Save(items []T) {
	cp := make([]T, len(items))
	copy(cp, items)

	c.mu.Lock()
	c.items = cp
	c.mu.Unlock()
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := indexOf(c.items, id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func indexOf[T Entity](items []T, id string) int {
	for i := range items {
		if items[i].EntityID() == id {
			return i
		}
	}
	return -1
}
