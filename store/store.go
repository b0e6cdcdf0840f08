// Package store persists the world graph in a relational database and keeps
// one canonical in-memory object per stored key.
//
// A Store exposes one repository per entity kind (Places, Things, Portals,
// ...). Every repository offers the same family of operations:
//
//	Know / KnowAny / KnowAll  existence in storage, no cache access
//	Have                      Know on an object's key
//	Make / MakeMany           insert
//	Update                    update; ErrStaleUpdate when nothing matched
//	Write                     Know ? Update : Make
//	Save                      Write from an object
//	Get / GetMany             identity cache, loading on a miss
//	Load / LoadMany           reread from storage, replacing cached objects
//	Delete / Cull             remove rows and their cached objects
//
// Writes go through a single lazily begun transaction. Each mutating call
// commits unless the store defers commits, the call passes NoCommit, or it
// runs inside Batch. Reads use the open transaction when there is one, so
// they observe pending writes.
//
// A Store is meant to be used by one logical owner at a time.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-worldstore/cache"
	"github.com/goliatone/go-worldstore/containment"
	"github.com/goliatone/go-worldstore/repositorycache"
	"github.com/goliatone/go-worldstore/world"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store owns the database handle, the write transaction and every identity
// cache.
type Store struct {
	cfg     Config
	db      *bun.DB
	tx      *bun.Tx
	batch   int
	logger  *slog.Logger
	assets  cache.CacheService
	keys    cache.KeySerializer
	metrics *repositorycache.Metrics
	index   *containment.Index

	dimensions   *DimensionRepo
	places       *PlaceRepo
	things       *ThingRepo
	portals      *PortalRepo
	attributes   *AttributeRepo
	attributions *AttributionRepo
	images       *ImageRepo
	boards       *BoardRepo
	spots        *SpotRepo
	pawns        *PawnRepo
	colors       *ColorRepo
	styles       *StyleRepo
	menus        *MenuRepo
	menuItems    *MenuItemRepo
	routes       *RouteRepo
}

// Open connects to storage and builds the repositories. When cfg asks for
// it, missing tables are created and the default dimension is inserted.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.DefaultDimension == "" {
		cfg.DefaultDimension = world.DefaultDimension
	}
	s := &Store{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if s.db == nil {
		db, err := openDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.db = db
	}
	if s.assets == nil {
		assets, err := cache.NewCacheService(cache.DefaultConfig())
		if err != nil {
			_ = s.db.Close()
			return nil, err
		}
		s.assets = assets
	}
	if s.keys == nil {
		s.keys = cache.NewDefaultKeySerializer()
	}
	s.index = containment.New(&containmentBackend{s: s})
	s.init()

	if cfg.CreateSchema {
		if err := s.CreateSchema(ctx); err != nil {
			_ = s.db.Close()
			return nil, err
		}
	}
	s.logger.Info("store: opened", "driver", cfg.Driver, "defer_commits", cfg.DeferCommits)
	return s, nil
}

func openDB(ctx context.Context, cfg Config) (*bun.DB, error) {
	var db *bun.DB
	switch cfg.Driver {
	case DriverSQLite, "":
		sqldb, err := sql.Open(DriverSQLite, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		// One connection: the write transaction and the pragmas belong to it.
		sqldb.SetMaxOpenConns(1)
		sqldb.SetMaxIdleConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: enable foreign keys: %w", err)
		}
	case DriverPostgres:
		sqldb, err := sql.Open(DriverPostgres, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return db, nil
}

func (s *Store) init() {
	s.dimensions = newDimensionRepo(s)
	s.places = newPlaceRepo(s)
	s.things = newThingRepo(s)
	s.portals = newPortalRepo(s)
	s.attributes = newAttributeRepo(s)
	s.attributions = newAttributionRepo(s)
	s.images = newImageRepo(s)
	s.boards = newBoardRepo(s)
	s.spots = newSpotRepo(s)
	s.pawns = newPawnRepo(s)
	s.colors = newColorRepo(s)
	s.styles = newStyleRepo(s)
	s.menus = newMenuRepo(s)
	s.menuItems = newMenuItemRepo(s)
	s.routes = newRouteRepo(s)
}

func (s *Store) Dimensions() *DimensionRepo     { return s.dimensions }
func (s *Store) Places() *PlaceRepo             { return s.places }
func (s *Store) Things() *ThingRepo             { return s.things }
func (s *Store) Portals() *PortalRepo           { return s.portals }
func (s *Store) Attributes() *AttributeRepo     { return s.attributes }
func (s *Store) Attributions() *AttributionRepo { return s.attributions }
func (s *Store) Images() *ImageRepo             { return s.images }
func (s *Store) Boards() *BoardRepo             { return s.boards }
func (s *Store) Spots() *SpotRepo               { return s.spots }
func (s *Store) Pawns() *PawnRepo               { return s.pawns }
func (s *Store) Colors() *ColorRepo             { return s.colors }
func (s *Store) Styles() *StyleRepo             { return s.styles }
func (s *Store) Menus() *MenuRepo               { return s.menus }
func (s *Store) MenuItems() *MenuItemRepo       { return s.menuItems }
func (s *Store) Routes() *RouteRepo             { return s.routes }

// DB exposes the underlying handle.
func (s *Store) DB() *bun.DB { return s.db }

// DefaultDimension returns the dimension used for items created without one.
func (s *Store) DefaultDimension() string { return s.cfg.DefaultDimension }

// reader returns the handle reads go through.
func (s *Store) reader() bun.IDB {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// writer returns the write transaction, beginning it if needed.
func (s *Store) writer(ctx context.Context) (bun.IDB, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	s.tx = &tx
	return s.tx, nil
}

// write runs fn inside the write transaction and commits afterwards unless
// commits are deferred.
func (s *Store) write(ctx context.Context, opts []WriteOption, fn func(db bun.IDB) error) error {
	db, err := s.writer(ctx)
	if err != nil {
		return err
	}
	if err := fn(db); err != nil {
		return err
	}
	if !s.writeOpts(opts).commit || s.batch > 0 {
		return nil
	}
	return s.Commit(ctx)
}

// Pending reports whether uncommitted writes exist.
func (s *Store) Pending() bool { return s.tx != nil }

// Commit makes pending writes durable.
func (s *Store) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		s.logger.Warn("store: commit failed", "err", err)
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Rollback discards pending writes. Cached objects may reflect the
// discarded writes, so every identity cache is emptied.
func (s *Store) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	s.Reset()
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Warn("store: rollback failed", "err", err)
		return fmt.Errorf("store: rollback: %w", err)
	}
	s.logger.Warn("store: rolled back pending writes")
	return nil
}

// Batch runs fn with every commit deferred, then commits once. When fn
// fails the pending writes are rolled back.
func (s *Store) Batch(ctx context.Context, fn func(ctx context.Context) error) error {
	s.batch++
	err := fn(ctx)
	s.batch--
	if s.batch > 0 {
		return err
	}
	if err != nil {
		if rerr := s.Rollback(ctx); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return s.Commit(ctx)
}

// Close commits pending writes and releases the handle. Pending writes are
// committed even if the last operation failed.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	cerr := s.Commit(ctx)
	err := s.db.Close()
	s.db = nil
	s.logger.Info("store: closed")
	return errors.Join(cerr, err)
}

// Reset empties every identity cache and the containment mirror. Storage is
// not touched.
func (s *Store) Reset() {
	s.dimensions.cache.Reset()
	s.places.cache.Reset()
	s.things.cache.Reset()
	s.portals.cache.Reset()
	s.attributes.cache.Reset()
	s.attributions.cache.Reset()
	s.images.cache.Reset()
	s.boards.cache.Reset()
	s.spots.cache.Reset()
	s.pawns.cache.Reset()
	s.colors.cache.Reset()
	s.styles.cache.Reset()
	s.menus.cache.Reset()
	s.menuItems.cache.Reset()
	s.routes.cache.Reset()
	s.index.Reset()
}

func (s *Store) dimensionOr(name string) string {
	if name == "" {
		return s.cfg.DefaultDimension
	}
	return name
}

func repoOptions[K comparable, V any](s *Store, kind world.Kind) []repositorycache.Option[K, V] {
	return []repositorycache.Option[K, V]{
		repositorycache.WithKind[K, V](kind.String()),
		repositorycache.WithMetrics[K, V](s.metrics),
	}
}

func missing(err error) bool { return errors.Is(err, ErrNotFound) }
