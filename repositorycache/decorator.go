package repositorycache

import (
	"context"
	"reflect"
	"strings"

	"github.com/goliatone/go-worldstore/cache"
)

// Loader reads entities from storage. Load returns an error when the key is
// unknown; LoadMany leaves unknown keys out of its result.
//
// Loaders that resolve references to other entities should Put the
// partially built object into the Repository before resolving, so that a
// cycle leading back to the same key finds it in the cache.
type Loader[K comparable, V any] interface {
	Load(ctx context.Context, key K) (V, error)
	LoadMany(ctx context.Context, keys []K) (map[K]V, error)
}

// LoaderFuncs adapts plain functions to Loader. When Many is nil, LoadMany
// calls One per key and skips keys that fail with an error matched by
// Missing (or every error when Missing is nil).
type LoaderFuncs[K comparable, V any] struct {
	One     func(ctx context.Context, key K) (V, error)
	Many    func(ctx context.Context, keys []K) (map[K]V, error)
	Missing func(error) bool
}

func (l LoaderFuncs[K, V]) Load(ctx context.Context, key K) (V, error) {
	return l.One(ctx, key)
}

func (l LoaderFuncs[K, V]) LoadMany(ctx context.Context, keys []K) (map[K]V, error) {
	if l.Many != nil {
		return l.Many(ctx, keys)
	}
	out := make(map[K]V, len(keys))
	for _, k := range keys {
		v, err := l.One(ctx, k)
		if err != nil {
			if l.Missing == nil || l.Missing(err) {
				continue
			}
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// Repository is a read-through decorator over a Loader backed by an
// Identity cache. Every Get of a key returns the same object until the key
// is invalidated.
type Repository[K comparable, V any] struct {
	kind     string
	loader   Loader[K, V]
	identity *cache.Identity[K, V]
	metrics  *Metrics
	rec      *recorder
}

// Option configures a Repository.
type Option[K comparable, V any] func(*Repository[K, V])

// WithMetrics records cache traffic on m.
func WithMetrics[K comparable, V any](m *Metrics) Option[K, V] {
	return func(r *Repository[K, V]) { r.metrics = m }
}

// WithKind overrides the kind label derived from V.
func WithKind[K comparable, V any](kind string) Option[K, V] {
	return func(r *Repository[K, V]) { r.kind = kind }
}

// New builds a Repository around loader.
func New[K comparable, V any](loader Loader[K, V], opts ...Option[K, V]) *Repository[K, V] {
	r := &Repository[K, V]{
		kind:     kindOf[V](),
		loader:   loader,
		identity: cache.NewIdentity[K, V](),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.rec = newRecorder(r.metrics, r.kind)
	return r
}

// Kind returns the label used for metrics and logs.
func (r *Repository[K, V]) Kind() string { return r.kind }

// Get returns the cached object for key, loading it on a miss.
func (r *Repository[K, V]) Get(ctx context.Context, key K) (V, error) {
	if v, ok := r.identity.Get(key); ok {
		r.rec.hits(ctx, 1)
		return v, nil
	}
	r.rec.misses(ctx, 1)
	v, err := r.loader.Load(ctx, key)
	r.rec.load(ctx, err)
	if err != nil {
		var zero V
		return zero, err
	}
	return r.identity.Adopt(key, v), nil
}

// GetMany returns the objects for keys. Missing keys are loaded with one
// LoadMany call; keys unknown to storage are absent from the result.
func (r *Repository[K, V]) GetMany(ctx context.Context, keys []K) (map[K]V, error) {
	out := make(map[K]V, len(keys))
	var missing []K
	seen := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if v, ok := r.identity.Get(k); ok {
			out[k] = v
			continue
		}
		missing = append(missing, k)
	}
	r.rec.hits(ctx, len(out))
	if len(missing) == 0 {
		return out, nil
	}
	r.rec.misses(ctx, len(missing))

	loaded, err := r.loader.LoadMany(ctx, missing)
	r.rec.load(ctx, err)
	if err != nil {
		return nil, err
	}
	for k, v := range loaded {
		out[k] = r.identity.Adopt(k, v)
	}
	return out, nil
}

// Put makes v the canonical object for key.
func (r *Repository[K, V]) Put(key K, v V) {
	r.identity.Put(key, v)
}

// Peek returns the cached object without loading.
func (r *Repository[K, V]) Peek(key K) (V, bool) {
	return r.identity.Get(key)
}

// Invalidate forgets key; the next Get reloads it.
func (r *Repository[K, V]) Invalidate(key K) {
	r.identity.Delete(key)
}

// InvalidateWhere forgets every cached entry matching fn and reports how
// many were dropped.
func (r *Repository[K, V]) InvalidateWhere(fn func(K, V) bool) int {
	return r.identity.DeleteFunc(fn)
}

// Range calls fn for every cached entry.
func (r *Repository[K, V]) Range(fn func(K, V)) {
	for _, k := range r.identity.Keys() {
		if v, ok := r.identity.Get(k); ok {
			fn(k, v)
		}
	}
}

// Len reports the number of cached entries.
func (r *Repository[K, V]) Len() int {
	return r.identity.Len()
}

// Reset forgets every cached entry.
func (r *Repository[K, V]) Reset() {
	r.identity.Reset()
}

func kindOf[V any]() string {
	t := reflect.TypeOf((*V)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}
