package store

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

// PlaceRepo stores places. A loaded place carries its outbound portals, its
// contents and its attributes.
type PlaceRepo struct {
	repo[string, *world.Place]
	models repository.Repository[*placeRow]
}

func newPlaceRepo(s *Store) *PlaceRepo {
	r := &PlaceRepo{models: named(s.db, func() *placeRow { return &placeRow{} })}
	r.repo = newRepo[string, *world.Place](s, world.KindPlace, placeTable, nameArgs, r.loadMany)
	return r
}

func (r *PlaceRepo) Have(ctx context.Context, p *world.Place) (bool, error) {
	return r.Know(ctx, p.Name)
}

func (r *PlaceRepo) Make(ctx context.Context, rec PlaceRecord, opts ...WriteOption) error {
	return r.MakeMany(ctx, []PlaceRecord{rec}, opts...)
}

// MakeMany inserts every record with one statement per table.
func (r *PlaceRepo) MakeMany(ctx context.Context, recs []PlaceRecord, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		return r.make(ctx, db, recs)
	})
}

func (r *PlaceRepo) make(ctx context.Context, db bun.IDB, recs []PlaceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	names := make([]string, len(recs))
	rows := make([][]any, len(recs))
	for i := range recs {
		rec := &recs[i]
		if err := invalid(r.kind, rec.Name, rec.Validate()); err != nil {
			return err
		}
		rec.Dimension = r.s.dimensionOr(rec.Dimension)
		names[i] = rec.Name
		rows[i] = []any{rec.Name, rec.Dimension}
	}
	if err := r.s.insertItems(ctx, db, names...); err != nil {
		return err
	}
	if err := placeTable.Insert(ctx, db, []string{"name", "dimension"}, rows); err != nil {
		return classify("insert", placeTable.Name, err)
	}
	for _, rec := range recs {
		r.cache.Invalidate(rec.Name)
		if err := r.joinDimension(ctx, rec.Name, rec.Dimension); err != nil {
			return err
		}
	}
	return nil
}

// Update moves the place to another dimension.
func (r *PlaceRepo) Update(ctx context.Context, rec PlaceRecord, opts ...WriteOption) error {
	if err := invalid(r.kind, rec.Name, rec.Validate()); err != nil {
		return err
	}
	rec.Dimension = r.s.dimensionOr(rec.Dimension)
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		prev, err := r.row(ctx, rec.Name)
		if err != nil {
			if missing(err) {
				return stale(r.kind, rec.Name)
			}
			return err
		}
		n, err := r.s.exec(ctx, db, "update", placeTable.Name,
			"update place set dimension = ? where name = ?", rec.Dimension, rec.Name)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, rec.Name)
		}
		if prev.Dimension == rec.Dimension {
			return nil
		}
		r.s.dimensions.leavePlace(prev.Dimension, rec.Name)
		if p, ok := r.cache.Peek(rec.Name); ok {
			p.Dimension = rec.Dimension
		}
		return r.joinDimension(ctx, rec.Name, rec.Dimension)
	})
}

// Write updates the place when it is stored and makes it otherwise.
func (r *PlaceRepo) Write(ctx context.Context, rec PlaceRecord, opts ...WriteOption) error {
	ok, err := r.Know(ctx, rec.Name)
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, rec, opts...)
	}
	return r.Make(ctx, rec, opts...)
}

// Save writes p. When no place called p.Name was cached, p becomes the
// cached place and its portals, contents and attributes are read from
// storage. Otherwise the cached place is updated and p is left alone.
func (r *PlaceRepo) Save(ctx context.Context, p *world.Place, opts ...WriteOption) error {
	p.Dimension = r.s.dimensionOr(p.Dimension)
	write := func() error {
		return r.Write(ctx, PlaceRecord{Name: p.Name, Dimension: p.Dimension}, opts...)
	}
	return r.save(p.Name, p, write, func() error { return r.link(ctx, p) })
}

// link rebuilds the relations of p, the newly cached place, from storage.
func (r *PlaceRepo) link(ctx context.Context, p *world.Place) error {
	p.Portals, p.Contents, p.Attributes = nil, nil, nil
	if err := r.resolve(ctx, map[string]*world.Place{p.Name: p}); err != nil {
		return err
	}
	r.s.dimensions.leavePlace(p.Dimension, p.Name)
	r.s.dimensions.joinPlace(p.Dimension, p)
	r.s.portals.cache.Range(func(_ string, port *world.Portal) {
		if port.DestinationName() == p.Name {
			port.Destination = p
		}
	})
	return nil
}

// Delete removes the place with everything that cannot outlive it: portals
// leading to or from it, its spots and route steps ending there, its
// containment rows and attributions. Things it held become nowhere.
func (r *PlaceRepo) Delete(ctx context.Context, name string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		return r.delete(ctx, db, name)
	})
}

func (r *PlaceRepo) delete(ctx context.Context, db bun.IDB, name string) error {
	prev, err := r.row(ctx, name)
	if err != nil {
		return err
	}
	s := r.s

	var portals []string
	if err := s.query(ctx, &portals, "select", portalTable.Name,
		"select name from portal where from_place = ? or to_place = ? order by name", name, name); err != nil {
		return err
	}
	for _, p := range portals {
		if err := s.portals.delete(ctx, db, p); err != nil {
			return err
		}
	}
	if _, err := s.exec(ctx, db, "delete", stepTable.Name, "delete from step where destination = ?", name); err != nil {
		return err
	}
	s.routes.cache.InvalidateWhere(func(k world.RouteKey, _ *world.Route) bool { return k.Destination == name })

	if _, err := s.exec(ctx, db, "update", pawnTable.Name, "update pawn set spot = null where spot = ?", name); err != nil {
		return err
	}
	s.pawns.cache.Range(func(_ world.PawnKey, p *world.Pawn) {
		if p.Spot != nil && p.Spot.Place != nil && p.Spot.Place.Name == name {
			p.Spot = nil
		}
	})
	if _, err := s.exec(ctx, db, "delete", spotTable.Name, "delete from spot where place = ?", name); err != nil {
		return err
	}
	s.spots.cache.InvalidateWhere(func(k world.SpotKey, _ *world.Spot) bool { return k.Place == name })

	held, err := s.unlinkContainment(ctx, db, name)
	if err != nil {
		return err
	}
	if err := s.attributions.deleteItem(ctx, db, name); err != nil {
		return err
	}
	if _, err := placeTable.Delete(ctx, db, [][]any{{name}}); err != nil {
		return classify("delete", placeTable.Name, err)
	}
	if err := s.deleteItems(ctx, db, name); err != nil {
		return err
	}

	for _, t := range held {
		if th, ok := s.things.Cached(t); ok {
			th.Container = nil
		}
	}
	s.index.Forget(name)
	s.dimensions.leavePlace(prev.Dimension, name)
	r.cache.Invalidate(name)
	return nil
}

func (r *PlaceRepo) row(ctx context.Context, name string) (placeRow, error) {
	var rows []placeRow
	if err := placeTable.Select(ctx, r.s.reader(), &rows, []string{"dimension"}, [][]any{{name}}); err != nil {
		return placeRow{}, classify("select", placeTable.Name, err)
	}
	if len(rows) == 0 {
		return placeRow{}, notFound(r.kind, name)
	}
	return rows[0], nil
}

func (r *PlaceRepo) joinDimension(ctx context.Context, name, dim string) error {
	if _, ok := r.s.dimensions.Cached(dim); !ok {
		return nil
	}
	p, err := r.cache.Get(ctx, name)
	if err != nil {
		return err
	}
	r.s.dimensions.joinPlace(dim, p)
	return nil
}

func (r *PlaceRepo) loadMany(ctx context.Context, names []string) (map[string]*world.Place, error) {
	rows, err := listNamed(ctx, r.s, r.models, placeTable.Name, names)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*world.Place, len(rows))
	for _, row := range rows {
		p := &world.Place{Name: row.Name, Dimension: row.Dimension}
		out[row.Name] = p
		r.cache.Put(row.Name, p)
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := r.resolve(ctx, out); err != nil {
		r.release(keysOf(out))
		return nil, err
	}
	return out, nil
}

func (r *PlaceRepo) resolve(ctx context.Context, places map[string]*world.Place) error {
	names := keysOf(places)

	var portals []portalRow
	if err := r.s.query(ctx, &portals, "select", portalTable.Name,
		"select name, dimension, map, from_place, to_place from portal where from_place in "+
			gateway.ValuesRow(len(names))+" order by name", gateway.Values(names)...); err != nil {
		return err
	}
	portalNames := make([]string, len(portals))
	for i, p := range portals {
		portalNames[i] = p.Name
	}
	got, err := r.s.portals.GetMany(ctx, portalNames)
	if err != nil {
		return err
	}
	for _, row := range portals {
		port, ok := got[row.Name]
		if !ok {
			continue
		}
		origin := places[row.FromPlace]
		port.Origin = origin
		origin.AddPortal(port)
	}

	containers := make(map[string]world.Container, len(places))
	items := make([]world.Item, 0, len(places))
	for name, p := range places {
		containers[name] = p
		items = append(items, p)
	}
	if err := r.s.fillContents(ctx, containers); err != nil {
		return err
	}
	return r.s.attachAttributes(ctx, items)
}

// fillContents loads the things held by each container and links both
// directions.
func (s *Store) fillContents(ctx context.Context, containers map[string]world.Container) error {
	byDim := make(map[string][]string)
	for name, c := range containers {
		dim := c.ItemDimension()
		byDim[dim] = append(byDim[dim], name)
	}
	held := make(map[string][]string, len(containers))
	var all []string
	for dim, names := range byDim {
		got, err := s.index.ContentsMany(ctx, dim, names)
		if err != nil {
			return err
		}
		for c, list := range got {
			held[c] = append(held[c], list...)
			all = append(all, list...)
		}
	}
	if len(all) == 0 {
		return nil
	}
	things, err := s.things.GetMany(ctx, all)
	if err != nil {
		return err
	}
	for name, c := range containers {
		for _, t := range held[name] {
			th, ok := things[t]
			if !ok {
				continue
			}
			th.Container = c
			c.AddContent(th)
		}
	}
	return nil
}

// unlinkContainment deletes every containment row naming item on either
// side and returns the things it held.
func (s *Store) unlinkContainment(ctx context.Context, db bun.IDB, item string) ([]string, error) {
	var held []string
	if err := s.query(ctx, &held, "select", containmentTable.Name,
		"select contained from containment where container = ?", item); err != nil {
		return nil, err
	}
	if _, err := s.exec(ctx, db, "delete", containmentTable.Name,
		"delete from containment where contained = ? or container = ?", item, item); err != nil {
		return nil, err
	}
	return held, nil
}
