package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/repositorycache"
	"github.com/goliatone/go-worldstore/world"
)

// repo is embedded by every entity repository. It carries the table used
// for existence checks and the identity cache in front of the loader.
type repo[K comparable, V any] struct {
	s     *Store
	kind  world.Kind
	table gateway.Table
	args  func(K) []any
	cache *repositorycache.Repository[K, V]
}

type loadFn[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

func newRepo[K comparable, V any](s *Store, kind world.Kind, table gateway.Table, args func(K) []any, many loadFn[K, V]) repo[K, V] {
	logged := func(ctx context.Context, keys []K) (map[K]V, error) {
		s.logger.Debug("store: load", "kind", kind.String(), "keys", len(keys))
		got, err := many(ctx, keys)
		if err != nil {
			s.logger.Debug("store: load failed", "kind", kind.String(), "err", err)
		}
		return got, err
	}
	loader := repositorycache.LoaderFuncs[K, V]{
		One:     loadOne(kind, logged),
		Many:    logged,
		Missing: missing,
	}
	return repo[K, V]{
		s:     s,
		kind:  kind,
		table: table,
		args:  args,
		cache: repositorycache.New[K, V](loader, repoOptions[K, V](s, kind)...),
	}
}

func loadOne[K comparable, V any](kind world.Kind, many loadFn[K, V]) func(context.Context, K) (V, error) {
	return func(ctx context.Context, key K) (V, error) {
		var zero V
		got, err := many(ctx, []K{key})
		if err != nil {
			return zero, err
		}
		v, ok := got[key]
		if !ok {
			return zero, notFound(kind, key)
		}
		return v, nil
	}
}

// Know reports whether key is stored. The cache is not consulted.
func (r repo[K, V]) Know(ctx context.Context, key K) (bool, error) {
	ok, err := r.table.Know(ctx, r.s.reader(), r.args(key)...)
	return ok, classify("know", r.table.Name, err)
}

// KnowAny reports whether at least one of keys is stored.
func (r repo[K, V]) KnowAny(ctx context.Context, keys []K) (bool, error) {
	ok, err := r.table.KnowAny(ctx, r.s.reader(), r.rows(keys))
	return ok, classify("know", r.table.Name, err)
}

// KnowAll reports whether every one of keys is stored.
func (r repo[K, V]) KnowAll(ctx context.Context, keys []K) (bool, error) {
	ok, err := r.table.KnowAll(ctx, r.s.reader(), r.rows(keys))
	return ok, classify("know", r.table.Name, err)
}

// Get returns the canonical object for key.
func (r repo[K, V]) Get(ctx context.Context, key K) (V, error) {
	return r.cache.Get(ctx, key)
}

// GetMany returns the canonical objects for keys; unknown keys are absent.
func (r repo[K, V]) GetMany(ctx context.Context, keys []K) (map[K]V, error) {
	return r.cache.GetMany(ctx, keys)
}

// Load rereads key from storage. The fresh object replaces the cached one.
func (r repo[K, V]) Load(ctx context.Context, key K) (V, error) {
	r.cache.Invalidate(key)
	return r.cache.Get(ctx, key)
}

// LoadMany rereads keys from storage, replacing the cached objects.
func (r repo[K, V]) LoadMany(ctx context.Context, keys []K) (map[K]V, error) {
	for _, k := range keys {
		r.cache.Invalidate(k)
	}
	return r.cache.GetMany(ctx, keys)
}

// Cached returns the object for key only when it is already in memory.
func (r repo[K, V]) Cached(key K) (V, bool) {
	return r.cache.Peek(key)
}

// Invalidate forgets the cached object for key.
func (r repo[K, V]) Invalidate(key K) {
	r.cache.Invalidate(key)
}

// save runs write for v. An object cached for key before the write stays
// the cached one; write has already brought it up to date. Otherwise v is
// cached over anything the write loaded and link ties it to the objects
// it relates to. v is dropped again when link fails.
func (r repo[K, V]) save(key K, v V, write func() error, link func() error) error {
	_, had := r.cache.Peek(key)
	if err := write(); err != nil {
		return err
	}
	if had {
		return nil
	}
	r.cache.Put(key, v)
	if link == nil {
		return nil
	}
	if err := link(); err != nil {
		r.cache.Invalidate(key)
		return err
	}
	return nil
}

func (r repo[K, V]) rows(keys []K) [][]any {
	out := make([][]any, len(keys))
	for i, k := range keys {
		out[i] = r.args(k)
	}
	return out
}

// release drops placeholders published by a load that failed halfway.
func (r repo[K, V]) release(keys []K) {
	for _, k := range keys {
		r.cache.Invalidate(k)
	}
}

func nameArgs(name string) []any { return []any{name} }

func (s *Store) exec(ctx context.Context, db bun.IDB, op, table, q string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, classify(op, table, err)
	}
	n, err := res.RowsAffected()
	return n, classify(op, table, err)
}

func (s *Store) query(ctx context.Context, dest any, op, table, q string, args ...any) error {
	return classify(op, table, s.reader().NewRaw(q, args...).Scan(ctx, dest))
}

// insertItems adds the shared item rows backing places, things, portals and
// dimensions.
func (s *Store) insertItems(ctx context.Context, db bun.IDB, names ...string) error {
	return classify("insert", itemTable.Name, itemTable.Insert(ctx, db, []string{"name"}, gateway.Keys(names)))
}

func (s *Store) deleteItems(ctx context.Context, db bun.IDB, names ...string) error {
	_, err := itemTable.Delete(ctx, db, gateway.Keys(names))
	return classify("delete", itemTable.Name, err)
}

func stale(kind world.Kind, key any) error {
	return fmt.Errorf("%w: %s %s", ErrStaleUpdate, kind, keyString(key))
}

func keyString(key any) string {
	switch k := key.(type) {
	case string:
		return strconv.Quote(k)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%+v", k)
	}
}

func keysOf[K comparable, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func unique(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
