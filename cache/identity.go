package cache

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Identity maps each key to the one canonical in-memory object for it.
// Entries are never evicted; they leave only through Delete or Reset.
type Identity[K comparable, V any] struct {
	m *xsync.MapOf[K, V]
}

func NewIdentity[K comparable, V any]() *Identity[K, V] {
	return &Identity[K, V]{m: xsync.NewMapOf[K, V]()}
}

func (c *Identity[K, V]) Get(key K) (V, bool) {
	return c.m.Load(key)
}

// Put replaces whatever is stored under key.
func (c *Identity[K, V]) Put(key K, v V) {
	c.m.Store(key, v)
}

// Adopt stores v unless key already has an object, and returns the object
// that is canonical afterwards.
func (c *Identity[K, V]) Adopt(key K, v V) V {
	actual, _ := c.m.LoadOrStore(key, v)
	return actual
}

func (c *Identity[K, V]) Delete(key K) {
	c.m.Delete(key)
}

// DeleteFunc removes every entry for which fn returns true and reports how
// many went.
func (c *Identity[K, V]) DeleteFunc(fn func(K, V) bool) int {
	var doomed []K
	c.m.Range(func(k K, v V) bool {
		if fn(k, v) {
			doomed = append(doomed, k)
		}
		return true
	})
	for _, k := range doomed {
		c.m.Delete(k)
	}
	return len(doomed)
}

func (c *Identity[K, V]) Len() int {
	return c.m.Size()
}

// Keys returns the cached keys in no particular order.
func (c *Identity[K, V]) Keys() []K {
	keys := make([]K, 0, c.m.Size())
	c.m.Range(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

func (c *Identity[K, V]) Reset() {
	c.m.Clear()
}
