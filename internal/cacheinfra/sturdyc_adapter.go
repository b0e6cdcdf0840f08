package cacheinfra

import (
	"context"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the sizing of the bounded asset cache.
type Config struct {
	// Capacity is the maximum number of payloads kept.
	Capacity int

	// NumShards splits the cache for concurrent access.
	NumShards int

	// TTL bounds how long a payload is served before it is read again.
	TTL time.Duration

	// EvictionPercentage is the share of entries dropped when the cache is
	// full. Must be between 1 and 100.
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are swept. Zero keeps
	// the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig sizes the cache for a few hundred map tiles and sprites.
func DefaultConfig() Config {
	return Config{
		Capacity:           512,
		NumShards:          16,
		TTL:                30 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions maps the optional settings. Capacity, NumShards, TTL and
// EvictionPercentage go straight to sturdyc.New.
//
// Early refreshes are never enabled: payloads are only read when a caller
// asks for them.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks the sizing values.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.NumShards > c.Capacity {
		return &ConfigError{Field: "NumShards", Message: "must not exceed Capacity"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// sturdycService stores byte payloads in a sturdyc client.
type sturdycService struct {
	client *sturdyc.Client[[]byte]
}

// NewSturdycService validates cfg and builds the client.
func NewSturdycService(cfg Config) (*sturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)
	return &sturdycService{client: client}, nil
}

// GetOrFetch returns the cached payload for key, calling fetch on a miss.
// Concurrent misses for the same key share one fetch.
func (s *sturdycService) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if fetch == nil {
		return nil, &ConfigError{Field: "fetch", Message: "cannot be nil"}
	}
	return s.client.GetOrFetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		return fetch(ctx)
	})
}

// Peek returns a cached payload without fetching.
func (s *sturdycService) Peek(key string) ([]byte, bool) {
	return s.client.Get(key)
}

func (s *sturdycService) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix drops every payload whose key starts with prefix.
func (s *sturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}
