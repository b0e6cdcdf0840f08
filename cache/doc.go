// Package cache holds the two caches the world store relies on.
//
// # Identity
//
// Identity[K, V] maps a key to the single in-memory object that stands for
// it. It never evicts: two reads of the same key always yield the same
// pointer until the entry is deleted.
//
//	places := cache.NewIdentity[string, *world.Place]()
//	places.Put("kitchen", kitchen)
//	p, ok := places.Get("kitchen") // p == kitchen
//
// The read-through logic (load on miss, batch loading, metrics) lives in the
// repositorycache package, which wraps an Identity.
//
// # Asset payloads
//
// CacheService is a bounded, evicting read-through cache for immutable byte
// payloads such as image files. The default implementation is backed by
// sturdyc and sized through Config:
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	data, err := cache.GetOrFetch(ctx, svc, key, func(ctx context.Context) ([]byte, error) {
//		return os.ReadFile(path)
//	})
//
// # Keys
//
// KeySerializer renders a namespace plus key parts into a string joined by
// KeySeparator. Composite struct keys render their exported fields in
// declaration order, values implementing encoding.TextMarshaler render
// through MarshalText.
//
//	serializer := cache.NewDefaultKeySerializer()
//	serializer.SerializeKey("img", "grass", "tiles/grass.png") // img::grass::tiles/grass.png
package cache
