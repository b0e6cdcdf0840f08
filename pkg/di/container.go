package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-worldstore/cache"
	"github.com/goliatone/go-worldstore/config"
	"github.com/goliatone/go-worldstore/repositorycache"
	"github.com/goliatone/go-worldstore/store"
)

// Container wires a store to its collaborators: the asset cache, the key
// serializer, the identity cache metrics and the logger. It owns the store
// and closes it with Close.
type Container struct {
	config        config.Config
	logger        *slog.Logger
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	metrics       *repositorycache.Metrics
	store         *store.Store
}

// Option customizes NewContainer.
type Option func(*Container)

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(c *Container) { c.logger = l }
}

// WithMetrics replaces the metrics built on the global meter provider.
func WithMetrics(m *repositorycache.Metrics) Option {
	return func(c *Container) { c.metrics = m }
}

// NewContainer validates cfg, builds every collaborator and opens the store.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Container{config: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = cfg.Logger()
	}

	cacheService, err := cache.NewCacheService(cfg.AssetCache)
	if err != nil {
		return nil, fmt.Errorf("di: asset cache: %w", err)
	}
	c.cacheService = cacheService
	c.keySerializer = cache.NewDefaultKeySerializer()

	if c.metrics == nil {
		m, err := repositorycache.GlobalMetrics()
		if err != nil {
			return nil, fmt.Errorf("di: metrics: %w", err)
		}
		c.metrics = m
	}

	st, err := store.Open(ctx, cfg.Store(),
		store.WithLogger(c.logger),
		store.WithAssetCache(c.cacheService),
		store.WithKeySerializer(c.keySerializer),
		store.WithMetrics(c.metrics),
	)
	if err != nil {
		return nil, err
	}
	c.store = st
	return c, nil
}

// NewContainerWithDefaults opens a container on config.Default.
func NewContainerWithDefaults(ctx context.Context) (*Container, error) {
	return NewContainer(ctx, config.Default())
}

func (c *Container) Store() *store.Store { return c.store }

// CacheService returns the asset cache shared with the store.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

func (c *Container) Metrics() *repositorycache.Metrics { return c.metrics }

func (c *Container) Logger() *slog.Logger { return c.logger }

// Config returns a copy of the configuration the container was built from.
func (c *Container) Config() config.Config {
	return c.config
}

// Close commits pending writes and closes the store.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.store == nil {
		return nil
	}
	err := c.store.Close(ctx)
	c.store = nil
	return err
}
