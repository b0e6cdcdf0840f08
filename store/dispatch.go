package store

import (
	"context"
	"fmt"

	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

// Item returns the place, thing or portal called name.
func (s *Store) Item(ctx context.Context, name string) (world.Item, error) {
	items, err := s.items(ctx, []string{name})
	if err != nil {
		return nil, err
	}
	it, ok := items[name]
	if !ok {
		return nil, notFound(0, name)
	}
	return it, nil
}

// kindsOf tells which item table holds each name. Names stored nowhere are
// absent.
func (s *Store) kindsOf(ctx context.Context, names []string) (map[string]world.Kind, error) {
	names = unique(names)
	out := make(map[string]world.Kind, len(names))
	if len(names) == 0 {
		return out, nil
	}
	in := gateway.ValuesRow(len(names))
	q := "select name, 'place' as kind from place where name in " + in +
		" union all select name, 'thing' as kind from thing where name in " + in +
		" union all select name, 'portal' as kind from portal where name in " + in
	args := gateway.Values(names)
	args = append(append(append([]any{}, args...), args...), args...)

	var rows []kindRow
	if err := s.query(ctx, &rows, "select", "item", q, args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		k, err := world.ParseKind(r.Kind)
		if err != nil {
			return nil, err
		}
		out[r.Name] = k
	}
	return out, nil
}

func (s *Store) items(ctx context.Context, names []string) (map[string]world.Item, error) {
	kinds, err := s.kindsOf(ctx, names)
	if err != nil {
		return nil, err
	}
	var places, things, portals []string
	for name, k := range kinds {
		switch k {
		case world.KindPlace:
			places = append(places, name)
		case world.KindThing:
			things = append(things, name)
		case world.KindPortal:
			portals = append(portals, name)
		}
	}
	out := make(map[string]world.Item, len(kinds))
	if len(places) > 0 {
		got, err := s.places.GetMany(ctx, places)
		if err != nil {
			return nil, err
		}
		for k, v := range got {
			out[k] = v
		}
	}
	if len(things) > 0 {
		got, err := s.things.GetMany(ctx, things)
		if err != nil {
			return nil, err
		}
		for k, v := range got {
			out[k] = v
		}
	}
	if len(portals) > 0 {
		got, err := s.portals.GetMany(ctx, portals)
		if err != nil {
			return nil, err
		}
		for k, v := range got {
			out[k] = v
		}
	}
	return out, nil
}

// containers resolves names to the places and things they denote. Names
// that are portals or unknown are absent.
func (s *Store) containers(ctx context.Context, names []string) (map[string]world.Container, error) {
	items, err := s.items(ctx, names)
	if err != nil {
		return nil, err
	}
	out := make(map[string]world.Container, len(items))
	for name, it := range items {
		if c, ok := it.(world.Container); ok {
			out[name] = c
		}
	}
	return out, nil
}

func (s *Store) container(ctx context.Context, name string) (world.Container, error) {
	got, err := s.containers(ctx, []string{name})
	if err != nil {
		return nil, err
	}
	c, ok := got[name]
	if !ok {
		return nil, notFound(0, name)
	}
	return c, nil
}

func (s *Store) cachedItem(name string) (world.Item, bool) {
	if p, ok := s.places.Cached(name); ok {
		return p, true
	}
	if t, ok := s.things.Cached(name); ok {
		return t, true
	}
	if p, ok := s.portals.Cached(name); ok {
		return p, true
	}
	return nil, false
}

func (s *Store) cachedContainer(name string) (world.Container, bool) {
	it, ok := s.cachedItem(name)
	if !ok {
		return nil, false
	}
	c, ok := it.(world.Container)
	return c, ok
}

// relocate brings cached objects in line after the thing called name moved
// from prev to next. Either may be "" for nowhere.
func (s *Store) relocate(ctx context.Context, name, prev, next string) error {
	if prev != "" {
		if c, ok := s.cachedContainer(prev); ok {
			c.RemoveContent(name)
		}
	}
	t, cached := s.things.Cached(name)
	if next == "" {
		if cached {
			t.Container = nil
		}
		return nil
	}
	if cached {
		c, err := s.container(ctx, next)
		if err != nil {
			return err
		}
		t.Container = c
		c.AddContent(t)
		return nil
	}
	if c, ok := s.cachedContainer(next); ok {
		t, err := s.things.Get(ctx, name)
		if err != nil {
			return err
		}
		c.AddContent(t)
	}
	return nil
}

// attachAttributes fills the Attributes of freshly loaded items.
func (s *Store) attachAttributes(ctx context.Context, items []world.Item) error {
	if len(items) == 0 {
		return nil
	}
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.ItemName()
	}
	vals, err := s.attributions.onItems(ctx, names)
	if err != nil {
		return err
	}
	for _, it := range items {
		for a, v := range vals[it.ItemName()] {
			it.SetAttribute(a, v)
		}
	}
	return nil
}

// rangeCachedItems calls fn for every cached place, thing and portal.
func (s *Store) rangeCachedItems(fn func(world.Item)) {
	s.places.cache.Range(func(_ string, p *world.Place) { fn(p) })
	s.things.cache.Range(func(_ string, t *world.Thing) { fn(t) })
	s.portals.cache.Range(func(_ string, p *world.Portal) { fn(p) })
}

// Save writes e through the repository of its kind. The object becomes the
// cached one for its key unless another object is cached there already; that
// object is updated instead and keeps its relations.
func (s *Store) Save(ctx context.Context, e world.Entity, opts ...WriteOption) error {
	switch v := e.(type) {
	case *world.Dimension:
		return s.dimensions.Save(ctx, v, opts...)
	case *world.Place:
		return s.places.Save(ctx, v, opts...)
	case *world.Thing:
		return s.things.Save(ctx, v, opts...)
	case *world.Portal:
		return s.portals.Save(ctx, v, opts...)
	case *world.Attribute:
		return s.attributes.Save(ctx, v, opts...)
	case *world.Attribution:
		return s.attributions.Save(ctx, v, opts...)
	case *world.Image:
		return s.images.Save(ctx, v, opts...)
	case *world.Board:
		return s.boards.Save(ctx, v, opts...)
	case *world.Spot:
		return s.spots.Save(ctx, v, opts...)
	case *world.Pawn:
		return s.pawns.Save(ctx, v, opts...)
	case *world.Color:
		return s.colors.Save(ctx, v, opts...)
	case *world.Style:
		return s.styles.Save(ctx, v, opts...)
	case *world.Menu:
		return s.menus.Save(ctx, v, opts...)
	case *world.MenuItem:
		return s.menuItems.Save(ctx, v, opts...)
	case *world.Route:
		return s.routes.Save(ctx, v, opts...)
	case nil:
		return fmt.Errorf("store: save: nil entity")
	default:
		return fmt.Errorf("store: save: unsupported entity %T", e)
	}
}

// Invalidate forgets the cached object of kind under key. key must have the
// key type of kind: string, world.AttributionKey, world.SpotKey,
// world.PawnKey, world.MenuItemKey or world.RouteKey.
func (s *Store) Invalidate(kind world.Kind, key any) error {
	bad := func() error {
		return fmt.Errorf("store: invalidate %s: unexpected key type %T", kind, key)
	}
	switch kind {
	case world.KindAttribution:
		k, ok := key.(world.AttributionKey)
		if !ok {
			return bad()
		}
		s.attributions.Invalidate(k)
		return nil
	case world.KindSpot:
		k, ok := key.(world.SpotKey)
		if !ok {
			return bad()
		}
		s.spots.Invalidate(k)
		return nil
	case world.KindPawn:
		k, ok := key.(world.PawnKey)
		if !ok {
			return bad()
		}
		s.pawns.Invalidate(k)
		return nil
	case world.KindMenuItem:
		k, ok := key.(world.MenuItemKey)
		if !ok {
			return bad()
		}
		s.menuItems.Invalidate(k)
		return nil
	case world.KindRoute:
		k, ok := key.(world.RouteKey)
		if !ok {
			return bad()
		}
		s.routes.Invalidate(k)
		return nil
	}

	name, ok := key.(string)
	if !ok {
		return bad()
	}
	switch kind {
	case world.KindDimension:
		s.dimensions.Invalidate(name)
	case world.KindPlace:
		s.places.Invalidate(name)
		s.index.Forget(name)
	case world.KindThing:
		s.things.Invalidate(name)
		s.index.Forget(name)
	case world.KindPortal:
		s.portals.Invalidate(name)
	case world.KindAttribute:
		s.attributes.Invalidate(name)
	case world.KindImage:
		s.images.Invalidate(name)
	case world.KindBoard:
		s.boards.Invalidate(name)
	case world.KindColor:
		s.colors.Invalidate(name)
	case world.KindStyle:
		s.styles.Invalidate(name)
	case world.KindMenu:
		s.menus.Invalidate(name)
	default:
		return fmt.Errorf("store: invalidate: unknown kind %s", kind)
	}
	return nil
}
