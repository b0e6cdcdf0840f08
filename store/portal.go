package store

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

// PortalRepo stores portals. A cached origin place lists its outbound
// portals; writes here keep that list current.
type PortalRepo struct {
	repo[string, *world.Portal]
}

func newPortalRepo(s *Store) *PortalRepo {
	r := &PortalRepo{}
	r.repo = newRepo[string, *world.Portal](s, world.KindPortal, portalTable, nameArgs, r.loadMany)
	return r
}

func (r *PortalRepo) Have(ctx context.Context, p *world.Portal) (bool, error) {
	return r.Know(ctx, p.Name)
}

// Make inserts a portal, and its reverse when the reciprocal policy or the
// record asks for it and no portal leads back yet.
func (r *PortalRepo) Make(ctx context.Context, rec PortalRecord, opts ...WriteOption) error {
	return r.MakeMany(ctx, []PortalRecord{rec}, opts...)
}

func (r *PortalRepo) MakeMany(ctx context.Context, recs []PortalRecord, opts ...WriteOption) error {
	wo := r.s.writeOpts(opts)
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		return r.make(ctx, db, recs, wo)
	})
}

func (r *PortalRepo) make(ctx context.Context, db bun.IDB, recs []PortalRecord, wo writeOptions) error {
	var all []PortalRecord
	pairs := make(map[[2]string]bool)
	for _, rec := range recs {
		rec, err := r.normalize(rec)
		if err != nil {
			return err
		}
		all = append(all, rec)
		pairs[[2]string{rec.Origin, rec.Destination}] = true
	}
	for _, rec := range recs {
		if !r.reciprocal(rec, wo) {
			continue
		}
		back := [2]string{rec.Destination, rec.Origin}
		if pairs[back] {
			continue
		}
		known, err := r.leads(ctx, rec.Destination, rec.Origin)
		if err != nil {
			return err
		}
		if known {
			continue
		}
		pairs[back] = true
		all = append(all, PortalRecord{
			Name:        world.ReciprocalName(rec.Origin, rec.Destination),
			Dimension:   r.s.dimensionOr(rec.Dimension),
			Map:         rec.Map,
			Origin:      rec.Destination,
			Destination: rec.Origin,
		})
	}
	if len(all) == 0 {
		return nil
	}

	names := make([]string, len(all))
	rows := make([][]any, len(all))
	for i, rec := range all {
		names[i] = rec.Name
		rows[i] = []any{rec.Name, rec.Dimension, rec.Map, rec.Origin, rec.Destination}
	}
	if err := r.s.insertItems(ctx, db, names...); err != nil {
		return err
	}
	if err := portalTable.Insert(ctx, db, []string{"name", "dimension", "map", "from_place", "to_place"}, rows); err != nil {
		return classify("insert", portalTable.Name, err)
	}
	for _, rec := range all {
		r.cache.Invalidate(rec.Name)
		if err := r.attach(ctx, rec, "", ""); err != nil {
			return err
		}
	}
	return nil
}

func (r *PortalRepo) normalize(rec PortalRecord) (PortalRecord, error) {
	if err := invalid(r.kind, rec.Name, rec.Validate()); err != nil {
		return rec, err
	}
	if rec.Name == "" {
		rec.Name = world.PortalName(rec.Origin, rec.Destination)
	}
	rec.Dimension = r.s.dimensionOr(rec.Dimension)
	return rec, nil
}

func (r *PortalRepo) reciprocal(rec PortalRecord, wo writeOptions) bool {
	if wo.reciprocal != nil {
		return *wo.reciprocal
	}
	return r.s.cfg.ReciprocalPortals || rec.Reciprocal
}

// leads reports whether some portal goes from orig to dest.
func (r *PortalRepo) leads(ctx context.Context, orig, dest string) (bool, error) {
	var n int
	err := r.s.query(ctx, &n, "know", portalTable.Name,
		"select count(*) from portal where from_place = ? and to_place = ?", orig, dest)
	return n > 0, err
}

// Update rewrites the portal's endpoints, map and dimension.
func (r *PortalRepo) Update(ctx context.Context, rec PortalRecord, opts ...WriteOption) error {
	rec, err := r.normalize(rec)
	if err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		prev, err := r.row(ctx, rec.Name)
		if err != nil {
			if missing(err) {
				return stale(r.kind, rec.Name)
			}
			return err
		}
		n, err := r.s.exec(ctx, db, "update", portalTable.Name,
			"update portal set dimension = ?, map = ?, from_place = ?, to_place = ? where name = ?",
			rec.Dimension, rec.Map, rec.Origin, rec.Destination, rec.Name)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, rec.Name)
		}
		return r.attach(ctx, rec, prev.FromPlace, prev.Dimension)
	})
}

func (r *PortalRepo) Write(ctx context.Context, rec PortalRecord, opts ...WriteOption) error {
	if rec.Name == "" {
		rec.Name = world.PortalName(rec.Origin, rec.Destination)
	}
	ok, err := r.Know(ctx, rec.Name)
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, rec, opts...)
	}
	return r.Make(ctx, rec, opts...)
}

// Save writes p. When no portal of that name was cached, p becomes the
// cached portal and is linked to the cached ends. Otherwise the cached
// portal is updated.
func (r *PortalRepo) Save(ctx context.Context, p *world.Portal, opts ...WriteOption) error {
	rec := PortalRecord{
		Name:        p.Name,
		Dimension:   r.s.dimensionOr(p.Dimension),
		Map:         p.Map,
		Origin:      p.OriginName(),
		Destination: p.DestinationName(),
	}
	if rec.Name == "" && rec.Origin != "" && rec.Destination != "" {
		rec.Name = world.PortalName(rec.Origin, rec.Destination)
	}
	write := func() error { return r.Write(ctx, rec, opts...) }
	return r.save(rec.Name, p, write, func() error { return r.link(ctx, p, rec) })
}

// link ties p, the newly cached portal, to its ends, its dimension and its
// stored attributes.
func (r *PortalRepo) link(ctx context.Context, p *world.Portal, rec PortalRecord) error {
	ends, err := r.s.places.GetMany(ctx, []string{rec.Origin, rec.Destination})
	if err != nil {
		return err
	}
	p.Name, p.Dimension = rec.Name, rec.Dimension
	p.Origin, p.Destination = ends[rec.Origin], ends[rec.Destination]
	if p.Origin != nil {
		p.Origin.RemovePortal(p.Name)
		p.Origin.AddPortal(p)
	}
	r.s.dimensions.leavePortal(rec.Dimension, p.Name)
	r.s.dimensions.joinPortal(rec.Dimension, p)
	p.Attributes = nil
	return r.s.attachAttributes(ctx, []world.Item{p})
}

// attach brings cached objects in line with rec after a write. prevOrigin
// and prevDim are the values before an update.
func (r *PortalRepo) attach(ctx context.Context, rec PortalRecord, prevOrigin, prevDim string) error {
	s := r.s
	if prevOrigin != "" && prevOrigin != rec.Origin {
		if o, ok := s.places.Cached(prevOrigin); ok {
			o.RemovePortal(rec.Name)
		}
	}
	if prevDim != "" && prevDim != rec.Dimension {
		s.dimensions.leavePortal(prevDim, rec.Name)
	}
	if p, ok := r.cache.Peek(rec.Name); ok {
		p.Dimension, p.Map = rec.Dimension, rec.Map
		ends, err := s.places.GetMany(ctx, []string{rec.Origin, rec.Destination})
		if err != nil {
			return err
		}
		p.Origin, p.Destination = ends[rec.Origin], ends[rec.Destination]
	}
	_, originCached := s.places.Cached(rec.Origin)
	_, dimCached := s.dimensions.Cached(rec.Dimension)
	if !originCached && !dimCached {
		return nil
	}
	p, err := r.cache.Get(ctx, rec.Name)
	if err != nil {
		return err
	}
	if p.Origin != nil {
		p.Origin.AddPortal(p)
	}
	s.dimensions.joinPortal(rec.Dimension, p)
	return nil
}

// Between returns the portals leading from orig to dest, ordered by name.
func (r *PortalRepo) Between(ctx context.Context, orig, dest string) ([]*world.Portal, error) {
	var names []string
	if err := r.s.query(ctx, &names, "select", portalTable.Name,
		"select name from portal where from_place = ? and to_place = ? order by name", orig, dest); err != nil {
		return nil, err
	}
	got, err := r.GetMany(ctx, names)
	if err != nil {
		return nil, err
	}
	out := make([]*world.Portal, 0, len(names))
	for _, n := range names {
		if p, ok := got[n]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Delete removes the portal with its attributions and the route steps
// through it.
func (r *PortalRepo) Delete(ctx context.Context, name string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		return r.delete(ctx, db, name)
	})
}

// Cull deletes the outbound portals of origin not named in keep.
func (r *PortalRepo) Cull(ctx context.Context, origin string, keep []string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		var doomed []string
		if err := portalTable.Except(ctx, db, &doomed, gateway.Eq("from_place", origin), "name", gateway.Values(keep)); err != nil {
			return classify("cull", portalTable.Name, err)
		}
		r.s.logger.Debug("store: cull", "kind", r.kind.String(), "key", origin, "removed", len(doomed))
		for _, name := range doomed {
			if err := r.delete(ctx, db, name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PortalRepo) delete(ctx context.Context, db bun.IDB, name string) error {
	s := r.s
	row, err := r.row(ctx, name)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, db, "delete", stepTable.Name, "delete from step where portal = ?", name); err != nil {
		return err
	}
	s.routes.cache.InvalidateWhere(func(_ world.RouteKey, rt *world.Route) bool {
		for _, st := range rt.Steps {
			if st.Portal != nil && st.Portal.Name == name {
				return true
			}
		}
		return false
	})
	held, err := s.unlinkContainment(ctx, db, name)
	if err != nil {
		return err
	}
	if err := s.attributions.deleteItem(ctx, db, name); err != nil {
		return err
	}
	if _, err := portalTable.Delete(ctx, db, [][]any{{name}}); err != nil {
		return classify("delete", portalTable.Name, err)
	}
	if err := s.deleteItems(ctx, db, name); err != nil {
		return err
	}

	for _, h := range held {
		if th, ok := s.things.Cached(h); ok {
			th.Container = nil
		}
	}
	if o, ok := s.places.Cached(row.FromPlace); ok {
		o.RemovePortal(name)
	}
	s.dimensions.leavePortal(row.Dimension, name)
	s.index.Forget(name)
	r.cache.Invalidate(name)
	return nil
}

func (r *PortalRepo) row(ctx context.Context, name string) (portalRow, error) {
	var rows []portalRow
	if err := portalTable.Select(ctx, r.s.reader(), &rows, []string{"dimension", "map", "from_place", "to_place"}, [][]any{{name}}); err != nil {
		return portalRow{}, classify("select", portalTable.Name, err)
	}
	if len(rows) == 0 {
		return portalRow{}, notFound(r.kind, name)
	}
	return rows[0], nil
}

func (r *PortalRepo) loadMany(ctx context.Context, names []string) (map[string]*world.Portal, error) {
	var rows []portalRow
	if err := portalTable.Select(ctx, r.s.reader(), &rows, []string{"dimension", "map", "from_place", "to_place"}, gateway.Keys(names)); err != nil {
		return nil, classify("select", portalTable.Name, err)
	}
	out := make(map[string]*world.Portal, len(rows))
	ends := make([]string, 0, 2*len(rows))
	items := make([]world.Item, 0, len(rows))
	for _, row := range rows {
		p := &world.Portal{Name: row.Name, Dimension: row.Dimension, Map: row.Map}
		out[row.Name] = p
		items = append(items, p)
		ends = append(ends, row.FromPlace, row.ToPlace)
		r.cache.Put(row.Name, p)
	}
	if len(out) == 0 {
		return out, nil
	}
	places, err := r.s.places.GetMany(ctx, ends)
	if err == nil {
		for _, row := range rows {
			out[row.Name].Origin = places[row.FromPlace]
			out[row.Name].Destination = places[row.ToPlace]
		}
		err = r.s.attachAttributes(ctx, items)
	}
	if err != nil {
		r.release(keysOf(out))
		return nil, err
	}
	return out, nil
}
