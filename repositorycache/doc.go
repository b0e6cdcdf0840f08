// Package repositorycache provides the read-through identity repository used
// for every entity kind of the world store.
//
// # Overview
//
// A Repository[K, V] decorates a Loader with an identity cache. Reads go to
// the cache first and fall through to the loader on a miss; the loaded
// object becomes the canonical object for its key and every later Get
// returns the very same pointer. Nothing is ever evicted. Entries leave the
// cache only through Invalidate, InvalidateWhere or Reset.
//
// # Basic Usage
//
//	places := repositorycache.New[string, *world.Place](loader,
//		repositorycache.WithMetrics[string, *world.Place](metrics),
//	)
//
//	kitchen, err := places.Get(ctx, "kitchen")
//	batch, err := places.GetMany(ctx, []string{"kitchen", "hall"})
//
// GetMany partitions its keys into cached and missing, deduplicates them, and
// issues a single LoadMany for the missing subset.
//
// # Cyclic graphs
//
// Entities refer to each other in cycles (a place lists its portals, a portal
// points back at the place). Loaders break the recursion by publishing the
// partially built object with Put before resolving references:
//
//	p := &world.Place{Name: row.Name}
//	places.Put(p.Name, p)
//	p.Portals, err = resolvePortals(ctx, p) // may Get p again and hit the cache
//
// A loader that fails after publishing a placeholder must Invalidate it.
//
// # Metrics
//
// NewMetrics registers four OpenTelemetry counters, all tagged with the
// repository kind:
//
//   - worldstore.cache.hits
//   - worldstore.cache.misses
//   - worldstore.cache.loads
//   - worldstore.cache.load_errors
//
// The kind defaults to the lower-cased type name of V (MenuItem becomes
// menuitem); WithKind overrides it.
package repositorycache
