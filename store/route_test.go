package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-worldstore/pkg/testsupport"
	"github.com/goliatone/go-worldstore/store"
	"github.com/goliatone/go-worldstore/world"
)

var toC = world.RouteKey{Thing: "walker", Destination: "c"}

// corridor stores a -> b -> c with a walker standing in a.
func corridor(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	rooms(t, st, "a", "b", "c")
	err := st.Portals().MakeMany(ctx, []store.PortalRecord{
		{Name: "ab", Origin: "a", Destination: "b"},
		{Name: "bc", Origin: "b", Destination: "c"},
	})
	if err != nil {
		t.Fatalf("make portals: %v", err)
	}
	if err := st.Things().Make(ctx, store.ThingRecord{Name: "walker", Container: "a"}); err != nil {
		t.Fatalf("make thing: %v", err)
	}
}

func TestRouteMakeAndGet(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	corridor(t, st)

	if err := st.Routes().Make(ctx, toC, []store.StepRecord{{Portal: "ab", Progress: 0.25}, {Portal: "bc"}}); err != nil {
		t.Fatalf("Make: %v", err)
	}
	rt, err := st.Routes().Get(ctx, toC)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	walker, _ := st.Things().Get(ctx, "walker")
	c, _ := st.Places().Get(ctx, "c")
	ab, _ := st.Portals().Get(ctx, "ab")
	if rt.Thing != walker || rt.Destination != c {
		t.Error("route ends are not the cached objects")
	}
	if len(rt.Steps) != 2 || rt.Steps[0].Portal != ab || rt.Steps[0].Progress != 0.25 || rt.Steps[1].Ordinal != 1 {
		t.Errorf("steps = %+v", rt.Steps)
	}

	if ok, err := st.Routes().KnowAnyOf(ctx, "walker"); err != nil || !ok {
		t.Errorf("KnowAnyOf = %v, %v", ok, err)
	}
	if ok, _ := st.Routes().KnowAnyOf(ctx, "nobody"); ok {
		t.Error("KnowAnyOf reports a route for a thing without one")
	}
}

func TestRouteAdvance(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	corridor(t, st)
	if err := st.Routes().Make(ctx, toC, []store.StepRecord{{Portal: "ab"}, {Portal: "bc"}}); err != nil {
		t.Fatalf("Make: %v", err)
	}
	rt, _ := st.Routes().Get(ctx, toC)

	if err := st.Routes().Advance(ctx, toC, 1, 0.5); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if rt.Steps[1].Progress != 0.5 {
		t.Errorf("cached progress = %v", rt.Steps[1].Progress)
	}

	tests := []struct {
		name     string
		ord      int
		progress float64
		want     error
	}{
		{"progress of one", 0, 1, store.ErrInvalid},
		{"negative progress", 0, -0.1, store.ErrInvalid},
		{"no such step", 5, 0.1, store.ErrStaleUpdate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := st.Routes().Advance(ctx, toC, tt.ord, tt.progress); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRouteValidation(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	corridor(t, st)

	tests := []struct {
		name  string
		key   world.RouteKey
		steps []store.StepRecord
	}{
		{"no thing", world.RouteKey{Destination: "c"}, []store.StepRecord{{Portal: "ab"}}},
		{"step without portal", toC, []store.StepRecord{{Portal: "ab"}, {}}},
		{"progress out of range", toC, []store.StepRecord{{Portal: "ab", Progress: 1.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := st.Routes().Make(ctx, tt.key, tt.steps); !errors.Is(err, store.ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestRouteUpdate(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	corridor(t, st)

	err := st.Routes().Update(ctx, toC, []store.StepRecord{{Portal: "ab"}})
	if !errors.Is(err, store.ErrStaleUpdate) {
		t.Fatalf("update of missing route = %v, want ErrStaleUpdate", err)
	}

	if err := st.Routes().Write(ctx, toC, []store.StepRecord{{Portal: "ab"}, {Portal: "bc"}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := st.Routes().Update(ctx, toC, []store.StepRecord{{Portal: "bc", Progress: 0.9}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	rt, err := st.Routes().Get(ctx, toC)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(rt.Steps) != 1 || rt.Steps[0].Portal.Name != "bc" || rt.Steps[0].Ordinal != 0 {
		t.Errorf("steps after update = %+v", rt.Steps)
	}
}

func TestRouteGap(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	corridor(t, st)

	_, err := st.DB().ExecContext(ctx,
		"insert into step (thing, destination, ord, progress, portal) values (?, ?, 0, 0, 'ab'), (?, ?, 2, 0, 'bc')",
		toC.Thing, toC.Destination, toC.Thing, toC.Destination)
	if err != nil {
		t.Fatalf("insert steps: %v", err)
	}
	if _, err := st.Routes().Get(ctx, toC); !errors.Is(err, store.ErrRouteGap) {
		t.Fatalf("err = %v, want ErrRouteGap", err)
	}
	if _, ok := st.Routes().Cached(toC); ok {
		t.Error("broken route was cached")
	}
}

func TestRouteSaveAndCull(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	corridor(t, st)
	walker, _ := st.Things().Get(ctx, "walker")
	b, _ := st.Places().Get(ctx, "b")
	c, _ := st.Places().Get(ctx, "c")
	ab, _ := st.Portals().Get(ctx, "ab")
	bc, _ := st.Portals().Get(ctx, "bc")

	toB := &world.Route{Thing: walker, Destination: b, Steps: []world.Step{{Portal: ab}}}
	long := &world.Route{Thing: walker, Destination: c, Steps: []world.Step{{Portal: ab}, {Portal: bc}}}
	for _, rt := range []*world.Route{toB, long} {
		if err := st.Save(ctx, rt); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if long.Steps[1].Ordinal != 1 {
		t.Errorf("Save did not number steps: %+v", long.Steps)
	}
	if got, _ := st.Routes().Get(ctx, toC); got != long {
		t.Error("saved route is not the cached one")
	}

	if err := st.Routes().Cull(ctx, "walker", []string{"b"}); err != nil {
		t.Fatalf("Cull: %v", err)
	}
	if ok, _ := st.Routes().Know(ctx, toC); ok {
		t.Error("culled route still stored")
	}
	if ok, _ := st.Routes().Know(ctx, toB.Key()); !ok {
		t.Error("kept route removed")
	}

	if err := st.Routes().Delete(ctx, toB.Key()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.Routes().Delete(ctx, toB.Key()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestPortalDeleteDropsRoutes(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	corridor(t, st)
	if err := st.Routes().Make(ctx, toC, []store.StepRecord{{Portal: "ab"}, {Portal: "bc"}}); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if _, err := st.Routes().Get(ctx, toC); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := st.Portals().Delete(ctx, "bc"); err != nil {
		t.Fatalf("delete portal: %v", err)
	}
	if _, ok := st.Routes().Cached(toC); ok {
		t.Error("route through a deleted portal still cached")
	}
	if ok, _ := st.Routes().KnowAnyOf(ctx, "walker"); ok {
		t.Error("steps through the deleted portal remain")
	}
}
