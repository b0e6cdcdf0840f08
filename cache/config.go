package cache

import (
	"time"

	"github.com/goliatone/go-worldstore/internal/cacheinfra"
)

// Config sizes the asset cache.
type Config struct {
	Capacity           int           `yaml:"capacity" env:"CAPACITY"`
	NumShards          int           `yaml:"num_shards" env:"NUM_SHARDS"`
	TTL                time.Duration `yaml:"ttl" env:"TTL"`
	EvictionPercentage int           `yaml:"eviction_percentage" env:"EVICTION_PERCENTAGE"`
	EvictionInterval   time.Duration `yaml:"eviction_interval" env:"EVICTION_INTERVAL"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewCacheService constructs the sturdyc backed asset cache.
func NewCacheService(cfg Config) (CacheService, error) {
	return cacheinfra.NewSturdycService(cfg.toInternal())
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}
