package store

import (
	"context"
	"errors"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/containment"
	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

// ThingRepo stores things and where they are.
type ThingRepo struct {
	repo[string, *world.Thing]
}

func newThingRepo(s *Store) *ThingRepo {
	r := &ThingRepo{}
	r.repo = newRepo[string, *world.Thing](s, world.KindThing, thingTable, nameArgs, r.loadMany)
	return r
}

func (r *ThingRepo) Have(ctx context.Context, t *world.Thing) (bool, error) {
	return r.Know(ctx, t.Name)
}

func (r *ThingRepo) Make(ctx context.Context, rec ThingRecord, opts ...WriteOption) error {
	return r.MakeMany(ctx, []ThingRecord{rec}, opts...)
}

// MakeMany inserts the things and the containment rows of those that start
// inside something.
func (r *ThingRepo) MakeMany(ctx context.Context, recs []ThingRecord, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		return r.make(ctx, db, recs)
	})
}

func (r *ThingRepo) make(ctx context.Context, db bun.IDB, recs []ThingRecord) error {
	if len(recs) == 0 {
		return nil
	}
	names := make([]string, len(recs))
	rows := make([][]any, len(recs))
	var held [][]any
	for i := range recs {
		rec := &recs[i]
		if err := invalid(r.kind, rec.Name, rec.Validate()); err != nil {
			return err
		}
		rec.Dimension = r.s.dimensionOr(rec.Dimension)
		names[i] = rec.Name
		rows[i] = []any{rec.Name, rec.Dimension}
		if rec.Container != "" {
			held = append(held, []any{rec.Dimension, rec.Name, rec.Container})
		}
	}
	if err := r.s.insertItems(ctx, db, names...); err != nil {
		return err
	}
	if err := thingTable.Insert(ctx, db, []string{"name", "dimension"}, rows); err != nil {
		return classify("insert", thingTable.Name, err)
	}
	if err := containmentTable.Insert(ctx, db, []string{"dimension", "contained", "container"}, held); err != nil {
		return classify("insert", containmentTable.Name, err)
	}
	for _, rec := range recs {
		r.cache.Invalidate(rec.Name)
		if rec.Container == "" {
			continue
		}
		// The rows went in behind the index's back.
		r.s.index.Forget(rec.Container)
		if err := r.s.relocate(ctx, rec.Name, "", rec.Container); err != nil {
			return err
		}
	}
	return nil
}

// Update rewrites the thing's dimension and container.
func (r *ThingRepo) Update(ctx context.Context, rec ThingRecord, opts ...WriteOption) error {
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
		n, err := r.s.exec(ctx, db, "update", thingTable.Name,
			"update thing set dimension = ? where name = ?", rec.Dimension, rec.Name)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, rec.Name)
		}
		was, err := r.containerOf(ctx, prev.Dimension, rec.Name)
		if err != nil {
			return err
		}
		if prev.Dimension != rec.Dimension && was != "" {
			if _, err := r.s.index.Remove(ctx, prev.Dimension, rec.Name); err != nil {
				return err
			}
		}
		if t, ok := r.cache.Peek(rec.Name); ok {
			t.Dimension = rec.Dimension
		}
		if err := r.place(ctx, rec.Dimension, rec.Name, rec.Container); err != nil {
			return err
		}
		return r.s.relocate(ctx, rec.Name, was, rec.Container)
	})
}

func (r *ThingRepo) Write(ctx context.Context, rec ThingRecord, opts ...WriteOption) error {
	ok, err := r.Know(ctx, rec.Name)
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, rec, opts...)
	}
	return r.Make(ctx, rec, opts...)
}

// Save writes t, including its container. When no thing called t.Name was
// cached, t becomes the cached thing. Otherwise the cached thing is updated.
func (r *ThingRepo) Save(ctx context.Context, t *world.Thing, opts ...WriteOption) error {
	t.Dimension = r.s.dimensionOr(t.Dimension)
	rec := ThingRecord{Name: t.Name, Dimension: t.Dimension, Container: t.ContainerName()}
	write := func() error { return r.Write(ctx, rec, opts...) }
	return r.save(t.Name, t, write, func() error { return r.link(ctx, t) })
}

// link rebuilds the container, contents and attributes of t, the newly
// cached thing, from storage and lists t in its container.
func (r *ThingRepo) link(ctx context.Context, t *world.Thing) error {
	t.Container, t.Contents, t.Attributes = nil, nil, nil
	if err := r.resolve(ctx, map[string]*world.Thing{t.Name: t}); err != nil {
		return err
	}
	if t.Container != nil {
		t.Container.RemoveContent(t.Name)
		t.Container.AddContent(t)
	}
	return nil
}

// Move puts the thing inside container, or nowhere when container is "".
func (r *ThingRepo) Move(ctx context.Context, name, container string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		row, err := r.row(ctx, name)
		if err != nil {
			return err
		}
		was, err := r.containerOf(ctx, row.Dimension, name)
		if err != nil {
			return err
		}
		if was == container {
			return nil
		}
		if err := r.place(ctx, row.Dimension, name, container); err != nil {
			return err
		}
		return r.s.relocate(ctx, name, was, container)
	})
}

// Location returns the name of whatever holds the thing, or "" when it is
// nowhere.
func (r *ThingRepo) Location(ctx context.Context, name string) (string, error) {
	row, err := r.row(ctx, name)
	if err != nil {
		return "", err
	}
	return r.containerOf(ctx, row.Dimension, name)
}

// CullContents takes every thing not listed in keep out of container.
func (r *ThingRepo) CullContents(ctx context.Context, container string, keep []string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		dim, err := r.s.dimensionOf(ctx, container)
		if err != nil {
			return err
		}
		removed, err := r.s.index.Cull(ctx, dim, container, keep)
		if err != nil {
			return err
		}
		r.s.logger.Debug("store: cull", "kind", "containment", "key", container, "removed", len(removed))
		for _, name := range removed {
			if err := r.s.relocate(ctx, name, container, ""); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the thing, its containment rows both ways, its
// attributions, pawns and routes. Things it held become nowhere.
func (r *ThingRepo) Delete(ctx context.Context, name string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		return r.delete(ctx, db, name)
	})
}

func (r *ThingRepo) delete(ctx context.Context, db bun.IDB, name string) error {
	s := r.s
	row, err := r.row(ctx, name)
	if err != nil {
		return err
	}
	was, err := r.containerOf(ctx, row.Dimension, name)
	if err != nil {
		return err
	}
	held, err := s.unlinkContainment(ctx, db, name)
	if err != nil {
		return err
	}
	if err := s.attributions.deleteItem(ctx, db, name); err != nil {
		return err
	}
	if _, err := s.exec(ctx, db, "delete", pawnTable.Name, "delete from pawn where thing = ?", name); err != nil {
		return err
	}
	s.pawns.cache.InvalidateWhere(func(k world.PawnKey, _ *world.Pawn) bool { return k.Thing == name })
	if _, err := s.exec(ctx, db, "delete", stepTable.Name, "delete from step where thing = ?", name); err != nil {
		return err
	}
	s.routes.cache.InvalidateWhere(func(k world.RouteKey, _ *world.Route) bool { return k.Thing == name })
	if _, err := thingTable.Delete(ctx, db, [][]any{{name}}); err != nil {
		return classify("delete", thingTable.Name, err)
	}
	if err := s.deleteItems(ctx, db, name); err != nil {
		return err
	}

	if c, ok := s.cachedContainer(was); ok && was != "" {
		c.RemoveContent(name)
	}
	for _, h := range held {
		if th, ok := r.cache.Peek(h); ok {
			th.Container = nil
		}
	}
	s.index.Forget(name)
	r.cache.Invalidate(name)
	return nil
}

// place records the thing's container in the index and storage.
func (r *ThingRepo) place(ctx context.Context, dim, name, container string) error {
	if container == "" {
		_, err := r.s.index.Remove(ctx, dim, name)
		return err
	}
	_, err := r.s.index.SetContainer(ctx, dim, name, container)
	if errors.Is(err, containment.ErrSelfContainment) {
		return invalid(r.kind, name, err)
	}
	return err
}

func (r *ThingRepo) containerOf(ctx context.Context, dim, name string) (string, error) {
	c, err := r.s.index.Container(ctx, dim, name)
	if errors.Is(err, containment.ErrNotFound) {
		return "", nil
	}
	return c, err
}

func (r *ThingRepo) row(ctx context.Context, name string) (thingRow, error) {
	var rows []thingRow
	if err := thingTable.Select(ctx, r.s.reader(), &rows, []string{"dimension"}, [][]any{{name}}); err != nil {
		return thingRow{}, classify("select", thingTable.Name, err)
	}
	if len(rows) == 0 {
		return thingRow{}, notFound(r.kind, name)
	}
	return rows[0], nil
}

func (r *ThingRepo) loadMany(ctx context.Context, names []string) (map[string]*world.Thing, error) {
	var rows []thingRow
	if err := thingTable.Select(ctx, r.s.reader(), &rows, []string{"dimension"}, gateway.Keys(names)); err != nil {
		return nil, classify("select", thingTable.Name, err)
	}
	out := make(map[string]*world.Thing, len(rows))
	for _, row := range rows {
		t := &world.Thing{Name: row.Name, Dimension: row.Dimension}
		out[row.Name] = t
		r.cache.Put(row.Name, t)
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

func (r *ThingRepo) resolve(ctx context.Context, things map[string]*world.Thing) error {
	byDim := make(map[string][]string)
	for name, t := range things {
		byDim[t.Dimension] = append(byDim[t.Dimension], name)
	}
	where := make(map[string]string, len(things))
	var targets []string
	for dim, names := range byDim {
		got, err := r.s.index.Containers(ctx, dim, names)
		if err != nil {
			return err
		}
		for t, c := range got {
			where[t] = c
			targets = append(targets, c)
		}
	}
	if len(targets) > 0 {
		cs, err := r.s.containers(ctx, targets)
		if err != nil {
			return err
		}
		for t, c := range where {
			if holder, ok := cs[c]; ok {
				things[t].Container = holder
			}
		}
	}

	containers := make(map[string]world.Container, len(things))
	items := make([]world.Item, 0, len(things))
	for name, t := range things {
		containers[name] = t
		items = append(items, t)
	}
	if err := r.s.fillContents(ctx, containers); err != nil {
		return err
	}
	return r.s.attachAttributes(ctx, items)
}

// dimensionOf returns the dimension of the place or thing called name.
func (s *Store) dimensionOf(ctx context.Context, name string) (string, error) {
	var dims []string
	if err := s.query(ctx, &dims, "select", "item",
		"select dimension from place where name = ? union all select dimension from thing where name = ?",
		name, name); err != nil {
		return "", err
	}
	if len(dims) == 0 {
		return "", notFound(0, name)
	}
	return dims[0], nil
}
