package seed_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-worldstore/attr"
	"github.com/goliatone/go-worldstore/pkg/testsupport"
	"github.com/goliatone/go-worldstore/seed"
	"github.com/goliatone/go-worldstore/store"
	"github.com/goliatone/go-worldstore/world"
)

func TestBuiltin(t *testing.T) {
	d := seed.Builtin()
	counts := map[string][2]int{
		"colors":       {len(d.Colors), 4},
		"styles":       {len(d.Styles), 2},
		"menus":        {len(d.Menus), 3},
		"menuitems":    {len(d.MenuItems), 8},
		"places":       {len(d.Places), 6},
		"portals":      {len(d.Portals), 5},
		"things":       {len(d.Things), 5},
		"attributes":   {len(d.Attributes), 2},
		"attributions": {len(d.Attributions), 2},
	}
	for what, c := range counts {
		if c[0] != c[1] {
			t.Errorf("%s: got %d, want %d", what, c[0], c[1])
		}
	}
	if !d.Attributions[0].Value.Equal(attr.Int(170)) {
		t.Errorf("height = %v, want int 170", d.Attributions[0].Value)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"empty", "", false},
		{"places", "places:\n  - {name: shed}\n", false},
		{"unknown key", "planets:\n  - mars\n", true},
		{"unknown field", "places:\n  - {name: shed, size: 3}\n", true},
		{"bad value", "attributions:\n  - {item: a, attribute: b, value: [1, 2]}\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := seed.Load(strings.NewReader(tt.src))
			if tt.wantErr != (err != nil) {
				t.Fatalf("Load = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := seed.LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	if err := seed.Apply(ctx, st, seed.Builtin()); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	myroom, err := st.Places().Get(ctx, "myroom")
	if err != nil {
		t.Fatalf("get myroom: %v", err)
	}
	if len(myroom.Portals) != 3 {
		t.Errorf("myroom has %d portals, want 3", len(myroom.Portals))
	}
	back, err := st.Portals().Between(ctx, "kitchen", "diningoom")
	if err != nil || len(back) != 1 {
		t.Errorf("reciprocal kitchen portal = %v, %v", back, err)
	}

	me, err := st.Things().Get(ctx, "me")
	if err != nil {
		t.Fatalf("get me: %v", err)
	}
	if me.Container != world.Container(myroom) {
		t.Errorf("me is in %q", me.ContainerName())
	}
	if v, ok := me.Attribute("mood"); !ok || v.String() != "calm" {
		t.Errorf("mood = %v, %v", v, ok)
	}

	main, err := st.Menus().Get(ctx, "Main")
	if err != nil {
		t.Fatalf("get menu: %v", err)
	}
	if len(main.Items) != 4 || main.Style == nil || main.Style.Name != "SmallDark" {
		t.Errorf("Main menu = %+v", main)
	}
}

func TestApplyRollsBack(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	d := seed.Defaults{
		Places: []store.PlaceRecord{{Name: "shed"}},
		Things: []store.ThingRecord{{Name: "rake", Container: "barn"}},
	}
	if err := seed.Apply(ctx, st, d); err == nil {
		t.Fatal("Apply with a dangling container succeeded")
	}
	if ok, _ := st.Places().Know(ctx, "shed"); ok {
		t.Error("shed survived a failed seed")
	}
}
