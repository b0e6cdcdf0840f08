package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-worldstore/pkg/testsupport"
	"github.com/goliatone/go-worldstore/store"
	"github.com/goliatone/go-worldstore/world"
)

// house stores two rooms joined both ways.
func house(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	if err := st.Places().MakeMany(ctx, []store.PlaceRecord{{Name: "hall"}, {Name: "attic"}}); err != nil {
		t.Fatalf("make places: %v", err)
	}
	if err := st.Portals().Make(ctx, store.PortalRecord{Origin: "hall", Destination: "attic"}, store.WithReciprocal(true)); err != nil {
		t.Fatalf("make portal: %v", err)
	}
}

func TestOpenCreatesDefaultDimension(t *testing.T) {
	st := testsupport.OpenStore(t, nil)
	ok, err := st.Dimensions().Know(context.Background(), world.DefaultDimension)
	if err != nil || !ok {
		t.Fatalf("default dimension missing: %v, %v", ok, err)
	}
	if st.DefaultDimension() != world.DefaultDimension {
		t.Errorf("DefaultDimension() = %q", st.DefaultDimension())
	}
}

func TestIdentity(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	house(t, st)

	a, err := st.Places().Get(ctx, "hall")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := st.Places().Get(ctx, "hall")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a != b {
		t.Fatal("two Gets returned different objects")
	}

	many, err := st.Places().GetMany(ctx, []string{"hall", "attic", "cellar"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if many["hall"] != a {
		t.Error("GetMany did not return the cached hall")
	}
	if _, ok := many["cellar"]; ok {
		t.Error("GetMany returned a place that does not exist")
	}

	// The portal resolves its ends to the same cached objects.
	p, err := st.Portals().Get(ctx, world.PortalName("hall", "attic"))
	if err != nil {
		t.Fatalf("get portal: %v", err)
	}
	if p.Origin != a || p.Destination != many["attic"] {
		t.Error("portal ends are not the cached places")
	}

	loaded, err := st.Places().Load(ctx, "hall")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == a {
		t.Error("Load should reread into a fresh object")
	}
	if got, _ := st.Places().Get(ctx, "hall"); got != loaded {
		t.Error("Load did not replace the cached object")
	}
}

func TestGetMissing(t *testing.T) {
	st := testsupport.OpenStore(t, nil)
	_, err := st.Places().Get(context.Background(), "nowhere")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	var nf *store.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != world.KindPlace {
		t.Errorf("err = %#v", err)
	}
}

func TestKnowAnyAll(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	house(t, st)

	tests := []struct {
		names   []string
		any, al bool
	}{
		{[]string{"hall"}, true, true},
		{[]string{"hall", "attic"}, true, true},
		{[]string{"hall", "cellar"}, true, false},
		{[]string{"cellar"}, false, false},
	}
	for _, tt := range tests {
		gotAny, err := st.Places().KnowAny(ctx, tt.names)
		if err != nil {
			t.Fatalf("KnowAny(%v): %v", tt.names, err)
		}
		gotAll, err := st.Places().KnowAll(ctx, tt.names)
		if err != nil {
			t.Fatalf("KnowAll(%v): %v", tt.names, err)
		}
		if gotAny != tt.any || gotAll != tt.al {
			t.Errorf("%v: any=%v all=%v, want %v %v", tt.names, gotAny, gotAll, tt.any, tt.al)
		}
	}
}

func TestDuplicateMake(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	if err := st.Colors().Make(ctx, world.Color{Name: "red", Red: 255}); err != nil {
		t.Fatalf("Make: %v", err)
	}
	err := st.Colors().Make(ctx, world.Color{Name: "red", Red: 200})
	if !errors.Is(err, store.ErrDuplicateKey) || !errors.Is(err, store.ErrConstraint) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
	if err := st.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
}

func TestUpdateMissingIsStale(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"place", func() error { return st.Places().Update(ctx, store.PlaceRecord{Name: "ghost"}) }},
		{"thing", func() error { return st.Things().Update(ctx, store.ThingRecord{Name: "ghost"}) }},
		{"color", func() error { return st.Colors().Update(ctx, world.Color{Name: "ghost"}) }},
		{"image", func() error { return st.Images().Update(ctx, world.Image{Name: "ghost", Path: "x.png"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, store.ErrStaleUpdate) {
				t.Fatalf("err = %v, want ErrStaleUpdate", err)
			}
		})
	}
}

func TestWriteMakesThenUpdates(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)

	if err := st.Colors().Write(ctx, world.Color{Name: "sky", Blue: 200}); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	c, err := st.Colors().Get(ctx, "sky")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := st.Colors().Write(ctx, world.Color{Name: "sky", Blue: 250}); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if c.Blue != 250 {
		t.Errorf("cached color not patched: %+v", c)
	}
	st.Reset()
	again, err := st.Colors().Get(ctx, "sky")
	if err != nil {
		t.Fatalf("Get after Reset: %v", err)
	}
	if again.Blue != 250 {
		t.Errorf("stored color = %+v", again)
	}
}

func TestBatchRollsBack(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	boom := errors.New("boom")

	err := st.Batch(ctx, func(ctx context.Context) error {
		if err := st.Places().Make(ctx, store.PlaceRecord{Name: "kept"}); err != nil {
			return err
		}
		if !st.Pending() {
			t.Error("batch writes should stay pending")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Batch = %v", err)
	}
	if st.Pending() {
		t.Error("rollback left a pending transaction")
	}
	if ok, _ := st.Places().Know(ctx, "kept"); ok {
		t.Error("place survived the rolled back batch")
	}
}

func TestBatchCommitsOnce(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)

	err := st.Batch(ctx, func(ctx context.Context) error {
		return st.Batch(ctx, func(ctx context.Context) error {
			return st.Places().MakeMany(ctx, []store.PlaceRecord{{Name: "a"}, {Name: "b"}})
		})
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if st.Pending() {
		t.Error("outer batch did not commit")
	}
	if ok, err := st.Places().KnowAll(ctx, []string{"a", "b"}); err != nil || !ok {
		t.Errorf("places missing: %v, %v", ok, err)
	}
}

func TestDeferredCommits(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, func(c *store.Config) { c.DeferCommits = true })

	if err := st.Places().Make(ctx, store.PlaceRecord{Name: "porch"}); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if !st.Pending() {
		t.Fatal("write should be pending")
	}
	// Reads see the pending write.
	if ok, err := st.Places().Know(ctx, "porch"); err != nil || !ok {
		t.Fatalf("pending write not visible: %v, %v", ok, err)
	}
	if err := st.Places().Make(ctx, store.PlaceRecord{Name: "yard"}, store.CommitNow()); err != nil {
		t.Fatalf("Make CommitNow: %v", err)
	}
	if st.Pending() {
		t.Error("CommitNow left the write pending")
	}

	if err := st.Places().Make(ctx, store.PlaceRecord{Name: "shed"}); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if err := st.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if ok, _ := st.Places().Know(ctx, "shed"); ok {
		t.Error("rolled back place still stored")
	}
	if ok, _ := st.Places().Know(ctx, "porch"); !ok {
		t.Error("committed place lost")
	}
}

func TestNoCommit(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	if err := st.Places().Make(ctx, store.PlaceRecord{Name: "loft"}, store.NoCommit()); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if !st.Pending() {
		t.Fatal("NoCommit should leave the write pending")
	}
	if err := st.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if st.Pending() {
		t.Error("Commit left a pending transaction")
	}
}

func TestRollbackEmptiesCaches(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	house(t, st)
	if _, err := st.Places().Get(ctx, "hall"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := st.Places().Make(ctx, store.PlaceRecord{Name: "den"}, store.NoCommit()); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if err := st.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if _, ok := st.Places().Cached("hall"); ok {
		t.Error("cache survived rollback")
	}
}

func TestInvalidRecords(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"place without name", func() error { return st.Places().Make(ctx, store.PlaceRecord{}) }},
		{"thing in itself", func() error {
			return st.Things().Make(ctx, store.ThingRecord{Name: "box", Container: "box"})
		}},
		{"portal loop", func() error {
			return st.Portals().Make(ctx, store.PortalRecord{Origin: "hall", Destination: "hall"})
		}},
		{"color channel", func() error { return st.Colors().Make(ctx, world.Color{Name: "hot", Red: 300}) }},
		{"image without path", func() error { return st.Images().Make(ctx, world.Image{Name: "blank"}) }},
		{"spot radius", func() error {
			return st.Spots().Make(ctx, store.SpotRecord{Place: "hall", Board: "map", R: -1})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, store.ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}
