package store

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

// DimensionRepo stores dimensions. A dimension object lists the places and
// portals in it.
type DimensionRepo struct {
	repo[string, *world.Dimension]
}

func newDimensionRepo(s *Store) *DimensionRepo {
	r := &DimensionRepo{}
	r.repo = newRepo[string, *world.Dimension](s, world.KindDimension, dimensionTable, nameArgs, r.loadMany)
	return r
}

// Have reports whether d is stored.
func (r *DimensionRepo) Have(ctx context.Context, d *world.Dimension) (bool, error) {
	return r.Know(ctx, d.Name)
}

func (r *DimensionRepo) Make(ctx context.Context, name string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		return r.make(ctx, db, name)
	})
}

func (r *DimensionRepo) MakeMany(ctx context.Context, names []string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		return r.make(ctx, db, names...)
	})
}

func (r *DimensionRepo) make(ctx context.Context, db bun.IDB, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	if err := r.s.insertItems(ctx, db, names...); err != nil {
		return err
	}
	err := dimensionTable.Insert(ctx, db, []string{"name"}, gateway.Keys(names))
	for _, n := range names {
		r.cache.Invalidate(n)
	}
	return classify("insert", dimensionTable.Name, err)
}

// Update has no fields to change; it only reports ErrStaleUpdate for an
// unknown dimension.
func (r *DimensionRepo) Update(ctx context.Context, name string, opts ...WriteOption) error {
	ok, err := r.Know(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return stale(r.kind, name)
	}
	return nil
}

func (r *DimensionRepo) Write(ctx context.Context, name string, opts ...WriteOption) error {
	ok, err := r.Know(ctx, name)
	if err != nil || ok {
		return err
	}
	return r.Make(ctx, name, opts...)
}

// Save writes d. When no dimension of that name was cached, d becomes the
// cached one and lists the stored places and portals.
func (r *DimensionRepo) Save(ctx context.Context, d *world.Dimension, opts ...WriteOption) error {
	link := func() error {
		d.Places, d.Portals = nil, nil
		return r.resolve(ctx, map[string]*world.Dimension{d.Name: d})
	}
	return r.save(d.Name, d, func() error { return r.Write(ctx, d.Name, opts...) }, link)
}

// Delete removes an empty dimension. Places, things and portals still in it
// make storage refuse.
func (r *DimensionRepo) Delete(ctx context.Context, name string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		if _, err := r.s.exec(ctx, db, "delete", containmentTable.Name,
			"delete from containment where dimension = ?", name); err != nil {
			return err
		}
		n, err := r.s.exec(ctx, db, "delete", dimensionTable.Name, "delete from dimension where name = ?", name)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(r.kind, name)
		}
		if err := r.s.deleteItems(ctx, db, name); err != nil {
			return err
		}
		r.cache.Invalidate(name)
		return nil
	})
}

func (r *DimensionRepo) loadMany(ctx context.Context, names []string) (map[string]*world.Dimension, error) {
	var found []string
	q := "select name from dimension where name in " + gateway.ValuesRow(len(names))
	if err := r.s.query(ctx, &found, "select", dimensionTable.Name, q, gateway.Values(names)...); err != nil {
		return nil, err
	}
	out := make(map[string]*world.Dimension, len(found))
	for _, n := range found {
		d := &world.Dimension{Name: n}
		out[n] = d
		r.cache.Put(n, d)
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := r.resolve(ctx, out); err != nil {
		r.release(found)
		return nil, err
	}
	return out, nil
}

func (r *DimensionRepo) resolve(ctx context.Context, dims map[string]*world.Dimension) error {
	names := keysOf(dims)
	in := gateway.ValuesRow(len(names))

	var places []placeRow
	if err := r.s.query(ctx, &places, "select", placeTable.Name,
		"select name, dimension from place where dimension in "+in+" order by name", gateway.Values(names)...); err != nil {
		return err
	}
	placeNames := make([]string, len(places))
	for i, p := range places {
		placeNames[i] = p.Name
	}
	gotPlaces, err := r.s.places.GetMany(ctx, placeNames)
	if err != nil {
		return err
	}
	for _, row := range places {
		if p, ok := gotPlaces[row.Name]; ok {
			dims[row.Dimension].Places = appendPlace(dims[row.Dimension].Places, p)
		}
	}

	var portals []portalRow
	if err := r.s.query(ctx, &portals, "select", portalTable.Name,
		"select name, dimension, map, from_place, to_place from portal where dimension in "+in+" order by name",
		gateway.Values(names)...); err != nil {
		return err
	}
	portalNames := make([]string, len(portals))
	for i, p := range portals {
		portalNames[i] = p.Name
	}
	gotPortals, err := r.s.portals.GetMany(ctx, portalNames)
	if err != nil {
		return err
	}
	for _, row := range portals {
		if p, ok := gotPortals[row.Name]; ok {
			dims[row.Dimension].Portals = appendPortal(dims[row.Dimension].Portals, p)
		}
	}
	return nil
}

// joinPlace and leavePlace keep a cached dimension's place list current.
func (r *DimensionRepo) joinPlace(dim string, p *world.Place) {
	if d, ok := r.cache.Peek(dim); ok {
		d.Places = appendPlace(d.Places, p)
	}
}

func (r *DimensionRepo) leavePlace(dim, name string) {
	d, ok := r.cache.Peek(dim)
	if !ok {
		return
	}
	out := d.Places[:0]
	for _, p := range d.Places {
		if p.Name != name {
			out = append(out, p)
		}
	}
	d.Places = out
}

func (r *DimensionRepo) joinPortal(dim string, p *world.Portal) {
	if d, ok := r.cache.Peek(dim); ok {
		d.Portals = appendPortal(d.Portals, p)
	}
}

func (r *DimensionRepo) leavePortal(dim, name string) {
	d, ok := r.cache.Peek(dim)
	if !ok {
		return
	}
	out := d.Portals[:0]
	for _, p := range d.Portals {
		if p.Name != name {
			out = append(out, p)
		}
	}
	d.Portals = out
}

func appendPlace(list []*world.Place, p *world.Place) []*world.Place {
	for _, have := range list {
		if have.Name == p.Name {
			return list
		}
	}
	return append(list, p)
}

func appendPortal(list []*world.Portal, p *world.Portal) []*world.Portal {
	for _, have := range list {
		if have.Name == p.Name {
			return list
		}
	}
	return append(list, p)
}
