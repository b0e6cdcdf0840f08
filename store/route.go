package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

// RouteRepo stores the planned routes of things. A route is the ordered set
// of step rows sharing (thing, destination).
type RouteRepo struct {
	repo[world.RouteKey, *world.Route]
}

// stepKeys selects step rows by route rather than by step.
var stepKeys = gateway.Table{Name: stepTable.Name, Keys: []string{"thing", "destination"}}

func newRouteRepo(s *Store) *RouteRepo {
	r := &RouteRepo{}
	r.repo = newRepo[world.RouteKey, *world.Route](s, world.KindRoute, routeTable,
		func(k world.RouteKey) []any { return []any{k.Thing, k.Destination} }, r.loadMany)
	return r
}

func (r *RouteRepo) Have(ctx context.Context, rt *world.Route) (bool, error) {
	return r.Know(ctx, rt.Key())
}

// KnowAnyOf reports whether thing has a route to anywhere.
func (r *RouteRepo) KnowAnyOf(ctx context.Context, thing string) (bool, error) {
	var n int
	if err := r.s.query(ctx, &n, "know", stepTable.Name,
		"select count(*) from step where thing = ?", thing); err != nil {
		return false, err
	}
	return n > 0, nil
}

func validSteps(key world.RouteKey, steps []StepRecord) error {
	if key.Thing == "" || key.Destination == "" {
		return invalid(world.KindRoute, key, errMissingName)
	}
	for i, st := range steps {
		if err := st.Validate(); err != nil {
			return invalid(world.KindRoute, key, fmt.Errorf("step %d: %w", i, err))
		}
	}
	return nil
}

// Make stores a new route. Steps are numbered by position.
func (r *RouteRepo) Make(ctx context.Context, key world.RouteKey, steps []StepRecord, opts ...WriteOption) error {
	if err := validSteps(key, steps); err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		return r.insert(ctx, db, key, steps)
	})
}

func (r *RouteRepo) insert(ctx context.Context, db bun.IDB, key world.RouteKey, steps []StepRecord) error {
	rows := make([][]any, len(steps))
	for i, st := range steps {
		rows[i] = []any{key.Thing, key.Destination, i, st.Progress, st.Portal}
	}
	if err := stepTable.Insert(ctx, db, []string{"thing", "destination", "ord", "progress", "portal"}, rows); err != nil {
		return classify("insert", stepTable.Name, err)
	}
	r.cache.Invalidate(key)
	return nil
}

// Update replaces the steps of an existing route.
func (r *RouteRepo) Update(ctx context.Context, key world.RouteKey, steps []StepRecord, opts ...WriteOption) error {
	if err := validSteps(key, steps); err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := stepKeys.Delete(ctx, db, [][]any{{key.Thing, key.Destination}})
		if err != nil {
			return classify("update", stepTable.Name, err)
		}
		if n == 0 {
			return stale(r.kind, key)
		}
		return r.insert(ctx, db, key, steps)
	})
}

// Write replaces every step of the route, creating it when absent.
func (r *RouteRepo) Write(ctx context.Context, key world.RouteKey, steps []StepRecord, opts ...WriteOption) error {
	if err := validSteps(key, steps); err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		if _, err := stepKeys.Delete(ctx, db, [][]any{{key.Thing, key.Destination}}); err != nil {
			return classify("write", stepTable.Name, err)
		}
		return r.insert(ctx, db, key, steps)
	})
}

// Save replaces the stored steps with those of rt and caches rt, pointing it
// at the cached thing, destination and portals.
func (r *RouteRepo) Save(ctx context.Context, rt *world.Route, opts ...WriteOption) error {
	steps := make([]StepRecord, len(rt.Steps))
	for i, st := range rt.Steps {
		steps[i] = StepRecord{Progress: st.Progress}
		if st.Portal != nil {
			steps[i].Portal = st.Portal.Name
		}
	}
	if err := r.Write(ctx, rt.Key(), steps, opts...); err != nil {
		return err
	}
	key := rt.Key()
	t, err := r.s.things.Get(ctx, key.Thing)
	if err != nil {
		return err
	}
	dest, err := r.s.places.Get(ctx, key.Destination)
	if err != nil {
		return err
	}
	ports, err := r.s.portals.GetMany(ctx, unique(stepPortals(steps)))
	if err != nil {
		return err
	}
	rt.Thing, rt.Destination = t, dest
	for i := range rt.Steps {
		rt.Steps[i].Ordinal = i
		rt.Steps[i].Portal = ports[steps[i].Portal]
	}
	r.cache.Put(key, rt)
	return nil
}

func stepPortals(steps []StepRecord) []string {
	out := make([]string, len(steps))
	for i, st := range steps {
		out[i] = st.Portal
	}
	return out
}

// Advance records how far along step ord the thing is.
func (r *RouteRepo) Advance(ctx context.Context, key world.RouteKey, ord int, progress float64, opts ...WriteOption) error {
	if err := validProgress(progress); err != nil {
		return invalid(r.kind, key, err)
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := r.s.exec(ctx, db, "update", stepTable.Name,
			"update step set progress = ? where thing = ? and destination = ? and ord = ?",
			progress, key.Thing, key.Destination, ord)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, fmt.Sprintf("%s step %d", keyString(key), ord))
		}
		if rt, ok := r.cache.Peek(key); ok && ord < len(rt.Steps) {
			rt.Steps[ord].Progress = progress
		}
		return nil
	})
}

func (r *RouteRepo) Delete(ctx context.Context, key world.RouteKey, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := stepKeys.Delete(ctx, db, [][]any{{key.Thing, key.Destination}})
		if err != nil {
			return classify("delete", stepTable.Name, err)
		}
		if n == 0 {
			return notFound(r.kind, key)
		}
		r.cache.Invalidate(key)
		return nil
	})
}

// Cull deletes the routes of thing whose destination is not in keep.
func (r *RouteRepo) Cull(ctx context.Context, thing string, keep []string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		partial := gateway.Eq("thing", thing)
		var doomed []string
		if err := routeTable.Except(ctx, db, &doomed, partial, "destination", gateway.Values(keep)); err != nil {
			return classify("cull", stepTable.Name, err)
		}
		if _, err := stepTable.DeleteExcept(ctx, db, partial, "destination", gateway.Values(keep)); err != nil {
			return classify("cull", stepTable.Name, err)
		}
		r.s.logger.Debug("store: cull", "kind", r.kind.String(), "key", thing, "removed", len(doomed))
		for _, d := range doomed {
			r.cache.Invalidate(world.RouteKey{Thing: thing, Destination: d})
		}
		return nil
	})
}

// steps reads the step rows of keys grouped by route in ordinal order.
func (r *RouteRepo) steps(ctx context.Context, keys []world.RouteKey) (map[world.RouteKey][]stepRow, error) {
	var rows []stepRow
	if err := stepKeys.Select(ctx, r.s.reader(), &rows, []string{"ord", "progress", "portal"}, r.rows(keys)); err != nil {
		return nil, classify("select", stepTable.Name, err)
	}
	out := make(map[world.RouteKey][]stepRow)
	for _, row := range rows {
		k := world.RouteKey{Thing: row.Thing, Destination: row.Destination}
		out[k] = append(out[k], row)
	}
	for k, rs := range out {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Ord < rs[j].Ord })
		for i, row := range rs {
			if row.Ord != i {
				return nil, fmt.Errorf("%w: %s has ordinal %d at position %d", ErrRouteGap, keyString(k), row.Ord, i)
			}
		}
	}
	return out, nil
}

func (r *RouteRepo) loadMany(ctx context.Context, keys []world.RouteKey) (map[world.RouteKey]*world.Route, error) {
	s := r.s
	byRoute, err := r.steps(ctx, keys)
	if err != nil {
		return nil, err
	}
	var things, places, portals []string
	for k, rs := range byRoute {
		things = append(things, k.Thing)
		places = append(places, k.Destination)
		for _, row := range rs {
			portals = append(portals, row.Portal)
		}
	}
	ts, err := s.things.GetMany(ctx, unique(things))
	if err != nil {
		return nil, err
	}
	ps, err := s.places.GetMany(ctx, unique(places))
	if err != nil {
		return nil, err
	}
	pos, err := s.portals.GetMany(ctx, unique(portals))
	if err != nil {
		return nil, err
	}
	out := make(map[world.RouteKey]*world.Route, len(byRoute))
	for k, rs := range byRoute {
		t, p := ts[k.Thing], ps[k.Destination]
		if t == nil || p == nil {
			continue
		}
		rt := &world.Route{Thing: t, Destination: p, Steps: make([]world.Step, len(rs))}
		for i, row := range rs {
			rt.Steps[i] = world.Step{Ordinal: row.Ord, Progress: row.Progress, Portal: pos[row.Portal]}
		}
		out[k] = rt
	}
	return out, nil
}
