package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// schema is plain DDL accepted by both sqlite and postgres, in dependency
// order.
var schema = []string{
	`create table if not exists item (
		name text primary key)`,
	`create table if not exists dimension (
		name text primary key references item (name))`,
	`create table if not exists place (
		name text primary key references item (name),
		dimension text not null references dimension (name))`,
	`create table if not exists thing (
		name text primary key references item (name),
		dimension text not null references dimension (name))`,
	`create table if not exists portal (
		name text primary key references item (name),
		dimension text not null references dimension (name),
		map text not null default '',
		from_place text not null references place (name),
		to_place text not null references place (name),
		check (from_place <> to_place))`,
	`create table if not exists containment (
		dimension text not null references dimension (name),
		contained text not null references item (name),
		container text not null references item (name),
		primary key (dimension, contained),
		check (contained <> container))`,
	`create table if not exists attribute (
		name text primary key,
		type text not null default '',
		lower double precision,
		upper double precision)`,
	`create table if not exists permitted (
		attribute text not null references attribute (name),
		value text not null,
		primary key (attribute, value))`,
	`create table if not exists attribution (
		attribute text not null references attribute (name),
		attributed_to text not null references item (name),
		value text not null,
		primary key (attribute, attributed_to))`,
	`create table if not exists img (
		name text primary key,
		path text not null,
		rltile boolean not null default false)`,
	`create table if not exists board (
		name text primary key,
		dimension text not null,
		width integer not null,
		height integer not null,
		wallpaper text references img (name))`,
	`create table if not exists spot (
		place text not null references place (name),
		board text not null references board (name),
		x integer not null,
		y integer not null,
		r integer not null,
		primary key (place, board))`,
	`create table if not exists pawn (
		thing text not null references thing (name),
		board text not null references board (name),
		img text references img (name),
		spot text,
		primary key (thing, board))`,
	`create table if not exists color (
		name text primary key,
		red integer not null check (red between 0 and 255),
		green integer not null check (green between 0 and 255),
		blue integer not null check (blue between 0 and 255))`,
	`create table if not exists style (
		name text primary key,
		fontface text not null,
		fontsize integer not null,
		spacing integer not null,
		bg_inactive text not null references color (name),
		bg_active text not null references color (name),
		fg_inactive text not null references color (name),
		fg_active text not null references color (name))`,
	`create table if not exists menu (
		name text primary key,
		x double precision not null,
		y double precision not null,
		width double precision not null,
		height double precision not null,
		style text not null references style (name),
		visible boolean not null default false)`,
	`create table if not exists menuitem (
		menu text not null references menu (name),
		idx integer not null,
		text text not null,
		onclick text not null default '',
		closer boolean not null default true,
		primary key (menu, idx))`,
	`create table if not exists step (
		thing text not null references thing (name),
		destination text not null references place (name),
		ord integer not null,
		progress double precision not null check (progress >= 0 and progress < 1),
		portal text not null references portal (name),
		primary key (thing, destination, ord))`,
}

// CreateSchema creates missing tables and the default dimension, and
// commits even when commits are deferred.
func (s *Store) CreateSchema(ctx context.Context) error {
	return s.write(ctx, []WriteOption{CommitNow()}, func(db bun.IDB) error {
		for _, stmt := range schema {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("store: create schema: %w", err)
			}
		}
		known, err := dimensionTable.Know(ctx, db, s.cfg.DefaultDimension)
		if err != nil {
			return err
		}
		if !known {
			if err := s.dimensions.make(ctx, db, s.cfg.DefaultDimension); err != nil {
				return err
			}
		}
		s.logger.Info("store: schema ready", "default_dimension", s.cfg.DefaultDimension)
		return nil
	})
}

// Initialized reports whether the schema exists.
func (s *Store) Initialized(ctx context.Context) (bool, error) {
	var q string
	switch s.db.Dialect().Name() {
	case dialect.PG:
		q = "select count(*) from information_schema.tables where table_name = 'item'"
	default:
		q = "select count(*) from sqlite_master where type = 'table' and name = 'item'"
	}
	var n int
	if err := s.reader().NewRaw(q).Scan(ctx, &n); err != nil {
		return false, fmt.Errorf("store: initialized: %w", err)
	}
	return n > 0, nil
}
