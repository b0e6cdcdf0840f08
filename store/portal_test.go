package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-worldstore/pkg/testsupport"
	"github.com/goliatone/go-worldstore/store"
	"github.com/goliatone/go-worldstore/world"
)

func rooms(t *testing.T, st *store.Store, names ...string) {
	t.Helper()
	recs := make([]store.PlaceRecord, len(names))
	for i, n := range names {
		recs[i] = store.PlaceRecord{Name: n}
	}
	if err := st.Places().MakeMany(context.Background(), recs); err != nil {
		t.Fatalf("make places: %v", err)
	}
}

func TestPortalTraversal(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	rooms(t, st, "a", "b", "c")
	err := st.Portals().MakeMany(ctx, []store.PortalRecord{
		{Origin: "a", Destination: "b"},
		{Origin: "b", Destination: "c"},
	})
	if err != nil {
		t.Fatalf("make portals: %v", err)
	}

	// Walk a -> b -> c through the object graph alone.
	here, err := st.Places().Get(ctx, "a")
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	var path []string
	for len(here.Portals) > 0 {
		path = append(path, here.Name)
		here = here.Portals[0].Destination
	}
	path = append(path, here.Name)
	if len(path) != 3 || path[2] != "c" {
		t.Fatalf("path = %v, want [a b c]", path)
	}
	c, _ := st.Places().Get(ctx, "c")
	if here != c {
		t.Error("walked to a different c than the cached one")
	}
}

func TestPortalReciprocal(t *testing.T) {
	tests := []struct {
		name     string
		policy   bool
		rec      bool
		opts     []store.WriteOption
		wantBack bool
	}{
		{"off", false, false, nil, false},
		{"store policy", true, false, nil, true},
		{"record flag", false, true, nil, true},
		{"option overrides policy", true, false, []store.WriteOption{store.WithReciprocal(false)}, false},
		{"option turns it on", false, false, []store.WriteOption{store.WithReciprocal(true)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := testsupport.OpenStore(t, func(c *store.Config) { c.ReciprocalPortals = tt.policy })
			rooms(t, st, "north", "south")
			rec := store.PortalRecord{Origin: "north", Destination: "south", Reciprocal: tt.rec}
			if err := st.Portals().Make(ctx, rec, tt.opts...); err != nil {
				t.Fatalf("Make: %v", err)
			}
			back, err := st.Portals().Between(ctx, "south", "north")
			if err != nil {
				t.Fatalf("Between: %v", err)
			}
			if got := len(back) == 1; got != tt.wantBack {
				t.Fatalf("reverse portals = %d, want back=%v", len(back), tt.wantBack)
			}
			if tt.wantBack && back[0].Name != world.ReciprocalName("north", "south") {
				t.Errorf("reverse portal named %q", back[0].Name)
			}
		})
	}
}

func TestPortalReciprocalSkipsExisting(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	rooms(t, st, "up", "down")
	if err := st.Portals().Make(ctx, store.PortalRecord{Name: "stairs", Origin: "down", Destination: "up"}); err != nil {
		t.Fatalf("make stairs: %v", err)
	}
	if err := st.Portals().Make(ctx, store.PortalRecord{Name: "chute", Origin: "up", Destination: "down"}, store.WithReciprocal(true)); err != nil {
		t.Fatalf("make chute: %v", err)
	}
	back, err := st.Portals().Between(ctx, "down", "up")
	if err != nil {
		t.Fatalf("Between: %v", err)
	}
	if len(back) != 1 || back[0].Name != "stairs" {
		t.Errorf("down -> up = %v, want only stairs", back)
	}
}

func TestPortalUpdateMovesOrigin(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	rooms(t, st, "a", "b", "c")
	if err := st.Portals().Make(ctx, store.PortalRecord{Name: "door", Origin: "a", Destination: "b"}); err != nil {
		t.Fatalf("Make: %v", err)
	}
	a, _ := st.Places().Get(ctx, "a")
	c, _ := st.Places().Get(ctx, "c")
	door, _ := st.Portals().Get(ctx, "door")

	if err := st.Portals().Update(ctx, store.PortalRecord{Name: "door", Origin: "c", Destination: "b"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(a.Portals) != 0 {
		t.Errorf("a still lists %d portals", len(a.Portals))
	}
	if len(c.Portals) != 1 || c.Portals[0] != door {
		t.Errorf("c portals = %v", c.Portals)
	}
	if door.Origin != c {
		t.Errorf("door origin = %q", door.OriginName())
	}
}

func TestPortalUnknownPlace(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	rooms(t, st, "a")
	err := st.Portals().Make(ctx, store.PortalRecord{Origin: "a", Destination: "ghost"})
	if !errors.Is(err, store.ErrConstraint) {
		t.Fatalf("err = %v, want ErrConstraint", err)
	}
	_ = st.Rollback(ctx)
}

func TestPortalCull(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	rooms(t, st, "hub", "x", "y", "z")
	err := st.Portals().MakeMany(ctx, []store.PortalRecord{
		{Origin: "hub", Destination: "x"},
		{Origin: "hub", Destination: "y"},
		{Origin: "hub", Destination: "z"},
		{Origin: "x", Destination: "hub"},
	})
	if err != nil {
		t.Fatalf("make portals: %v", err)
	}
	hub, _ := st.Places().Get(ctx, "hub")
	keep := world.PortalName("hub", "y")

	if err := st.Portals().Cull(ctx, "hub", []string{keep}); err != nil {
		t.Fatalf("Cull: %v", err)
	}
	if len(hub.Portals) != 1 || hub.Portals[0].Name != keep {
		t.Errorf("hub portals = %v, want only %s", hub.Portals, keep)
	}
	if ok, _ := st.Portals().Know(ctx, world.PortalName("x", "hub")); !ok {
		t.Error("cull touched a portal of another origin")
	}

	// An empty keep list removes every outbound portal.
	if err := st.Portals().Cull(ctx, "hub", nil); err != nil {
		t.Fatalf("Cull all: %v", err)
	}
	if ok, _ := st.Portals().KnowAny(ctx, []string{keep}); ok {
		t.Error("portal survived a cull with nothing kept")
	}
}

func TestPortalDelete(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	house(t, st)
	hall, _ := st.Places().Get(ctx, "hall")
	name := world.PortalName("hall", "attic")

	if err := st.Portals().Delete(ctx, name); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(hall.Portals) != 0 {
		t.Error("cached origin still lists the portal")
	}
	if err := st.Portals().Delete(ctx, name); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestPortalSaveLinksCachedEnds(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	rooms(t, st, "a", "b")
	a, _ := st.Places().Get(ctx, "a")

	p := &world.Portal{Origin: &world.Place{Name: "a"}, Destination: &world.Place{Name: "b"}}
	if err := st.Portals().Save(ctx, p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, _ := st.Places().Get(ctx, "b")
	if p.Name != world.PortalName("a", "b") || p.Origin != a || p.Destination != b {
		t.Errorf("saved portal = %+v", p)
	}
	if len(a.Portals) != 1 || a.Portals[0] != p {
		t.Errorf("a lists %+v", a.Portals)
	}

	other := &world.Portal{Name: p.Name, Map: "east", Origin: a, Destination: b}
	if err := st.Portals().Save(ctx, other); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	got, _ := st.Portals().Get(ctx, p.Name)
	if got != p || p.Map != "east" || len(a.Portals) != 1 {
		t.Errorf("second Save replaced the cached portal: %+v", got)
	}
}
