package store

import (
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/cache"
	"github.com/goliatone/go-worldstore/repositorycache"
)

// Config describes how to reach storage and the store's write policy.
type Config struct {
	// Driver is "sqlite3" or "postgres".
	Driver string
	DSN    string

	// DeferCommits leaves writes pending until Commit, Batch or Close
	// instead of committing after every operation.
	DeferCommits bool

	// CreateSchema creates missing tables on Open.
	CreateSchema bool

	// ReciprocalPortals makes every new portal come with its reverse.
	ReciprocalPortals bool

	// DefaultDimension is used for items created without one.
	DefaultDimension string

	// AssetRoot resolves relative image paths.
	AssetRoot string
}

// Option customizes Open.
type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAssetCache sets the bounded cache used for image payloads.
func WithAssetCache(c cache.CacheService) Option {
	return func(s *Store) { s.assets = c }
}

// WithMetrics records identity cache traffic on m.
func WithMetrics(m *repositorycache.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithDB uses an already opened handle instead of Config.Driver/DSN. The
// store closes it on Close.
func WithDB(db *bun.DB) Option {
	return func(s *Store) { s.db = db }
}

// WithKeySerializer changes how asset cache keys are built.
func WithKeySerializer(k cache.KeySerializer) Option {
	return func(s *Store) { s.keys = k }
}

// WriteOption adjusts one mutating call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	commit     bool
	reciprocal *bool
}

// NoCommit leaves the write pending in the open transaction.
func NoCommit() WriteOption {
	return func(o *writeOptions) { o.commit = false }
}

// CommitNow commits after the write even when the store defers commits.
func CommitNow() WriteOption {
	return func(o *writeOptions) { o.commit = true }
}

// WithReciprocal overrides Config.ReciprocalPortals for one portal write.
func WithReciprocal(on bool) WriteOption {
	return func(o *writeOptions) { o.reciprocal = &on }
}

func (s *Store) writeOpts(opts []WriteOption) writeOptions {
	o := writeOptions{commit: !s.cfg.DeferCommits}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
