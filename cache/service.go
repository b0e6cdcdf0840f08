package cache

import "context"

// KeySerializer builds a cache key from a namespace and the parts that
// identify one entry.
type KeySerializer interface {
	SerializeKey(namespace string, parts ...any) string
}

// FetchFn reads a value from its source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is a bounded read-through cache for byte payloads such as
// image files. Entries may be evicted at any time; callers that need a
// canonical object per key use Identity instead.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetOrFetch adapts a typed FetchFn to the service.
func GetOrFetch(ctx context.Context, service CacheService, key string, fetch FetchFn[[]byte]) ([]byte, error) {
	return service.GetOrFetch(ctx, key, fetch)
}
