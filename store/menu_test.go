package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-worldstore/pkg/testsupport"
	"github.com/goliatone/go-worldstore/store"
	"github.com/goliatone/go-worldstore/world"
)

func menus(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	err := st.Colors().MakeMany(ctx, []world.Color{
		{Name: "black"},
		{Name: "white", Red: 255, Green: 255, Blue: 255},
	})
	if err != nil {
		t.Fatalf("make colors: %v", err)
	}
	err = st.Styles().Make(ctx, store.StyleRecord{
		Name: "plain", FontFace: "mono", FontSize: 12, Spacing: 2,
		BgInactive: "black", BgActive: "white", FgInactive: "white", FgActive: "black",
	})
	if err != nil {
		t.Fatalf("make style: %v", err)
	}
	if err := st.Menus().Make(ctx, store.MenuRecord{Name: "main", Width: 0.2, Height: 1, Style: "plain", Visible: true}); err != nil {
		t.Fatalf("make menu: %v", err)
	}
	err = st.MenuItems().MakeMany(ctx, []world.MenuItem{
		{Menu: "main", Index: 1, Text: "Load", OnClick: "load"},
		{Menu: "main", Index: 0, Text: "New", OnClick: "new"},
		{Menu: "main", Index: 2, Text: "Quit", OnClick: "quit", Closer: true},
	})
	if err != nil {
		t.Fatalf("make items: %v", err)
	}
}

func TestColorChannels(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	tests := []struct {
		name    string
		color   world.Color
		wantErr bool
	}{
		{"black", world.Color{Name: "c1"}, false},
		{"white", world.Color{Name: "c2", Red: 255, Green: 255, Blue: 255}, false},
		{"red too high", world.Color{Name: "c3", Red: 256}, true},
		{"negative green", world.Color{Name: "c4", Green: -1}, true},
		{"no name", world.Color{Blue: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := st.Colors().Make(ctx, tt.color)
			if tt.wantErr != (err != nil) {
				t.Fatalf("Make(%+v) = %v, wantErr %v", tt.color, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, store.ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestMenuGraph(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	menus(t, st)

	m, err := st.Menus().Get(ctx, "main")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !m.Visible || m.Width != 0.2 {
		t.Errorf("menu = %+v", m)
	}
	var texts []string
	for _, it := range m.Items {
		texts = append(texts, it.Text)
	}
	if len(texts) != 3 || texts[0] != "New" || texts[1] != "Load" || texts[2] != "Quit" {
		t.Errorf("items = %v, want [New Load Quit]", texts)
	}
	if !m.Items[2].Closer {
		t.Error("Quit should close the menu")
	}

	black, _ := st.Colors().Get(ctx, "black")
	if m.Style == nil || m.Style.BgInactive != black || m.Style.FgActive != black {
		t.Error("style colors are not the cached colors")
	}
	quit, err := st.MenuItems().Get(ctx, world.MenuItemKey{Menu: "main", Index: 2})
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if quit != m.Items[2] {
		t.Error("menu item is not the cached one")
	}
}

func TestMenuVisibleIsFixed(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	menus(t, st)
	m, _ := st.Menus().Get(ctx, "main")

	if err := st.Menus().Update(ctx, store.MenuRecord{Name: "main", X: 0.5, Width: 0.3, Height: 1, Style: "plain", Visible: false}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if m.X != 0.5 || m.Width != 0.3 {
		t.Errorf("cached menu not patched: %+v", m)
	}
	st.Reset()
	again, err := st.Menus().Get(ctx, "main")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !again.Visible {
		t.Error("Update changed visibility")
	}
}

func TestMenuItemEdits(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	menus(t, st)
	m, _ := st.Menus().Get(ctx, "main")

	if err := st.MenuItems().Make(ctx, world.MenuItem{Menu: "main", Index: 3, Text: "Help", OnClick: "help"}); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if len(m.Items) != 4 || m.Items[3].Text != "Help" {
		t.Fatalf("cached menu items after Make = %d", len(m.Items))
	}

	if err := st.MenuItems().Update(ctx, world.MenuItem{Menu: "main", Index: 1, Text: "Open", OnClick: "load"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if m.Items[1].Text != "Open" {
		t.Errorf("item 1 = %q", m.Items[1].Text)
	}

	if err := st.MenuItems().Cull(ctx, "main", []int{0, 2}); err != nil {
		t.Fatalf("Cull: %v", err)
	}
	items, err := st.MenuItems().OfMenu(ctx, "main")
	if err != nil {
		t.Fatalf("OfMenu: %v", err)
	}
	if len(items) != 2 || items[0].Index != 0 || items[1].Index != 2 {
		t.Errorf("items after cull = %v", items)
	}
	if len(m.Items) != 2 {
		t.Errorf("cached menu still lists %d items", len(m.Items))
	}

	err = st.MenuItems().Update(ctx, world.MenuItem{Menu: "main", Index: 9, Text: "Nope"})
	if !errors.Is(err, store.ErrStaleUpdate) {
		t.Errorf("update of missing item = %v", err)
	}
}

func TestStyleInUse(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	menus(t, st)

	err := st.Styles().Delete(ctx, "plain")
	if !errors.Is(err, store.ErrConstraint) {
		t.Fatalf("delete style in use = %v, want ErrConstraint", err)
	}
	if err := st.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if err := st.Menus().Delete(ctx, "main"); err != nil {
		t.Fatalf("delete menu: %v", err)
	}
	if ok, _ := st.MenuItems().KnowAny(ctx, []world.MenuItemKey{{Menu: "main", Index: 0}}); ok {
		t.Error("items outlived their menu")
	}
	if err := st.Styles().Delete(ctx, "plain"); err != nil {
		t.Fatalf("delete unused style: %v", err)
	}
}

func TestStyleUpdateRecolors(t *testing.T) {
	ctx := context.Background()
	st := testsupport.OpenStore(t, nil)
	menus(t, st)
	m, _ := st.Menus().Get(ctx, "main")
	white, _ := st.Colors().Get(ctx, "white")

	err := st.Styles().Update(ctx, store.StyleRecord{
		Name: "plain", FontFace: "serif", FontSize: 14, Spacing: 1,
		BgInactive: "white", BgActive: "white", FgInactive: "black", FgActive: "black",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if m.Style.FontFace != "serif" || m.Style.BgInactive != white {
		t.Errorf("menu style not patched: %+v", m.Style)
	}

	err = st.Styles().Make(ctx, store.StyleRecord{
		Name: "broken", FontFace: "mono", FontSize: 12,
		BgInactive: "black", BgActive: "purple", FgInactive: "white", FgActive: "black",
	})
	if !errors.Is(err, store.ErrConstraint) {
		t.Errorf("style with unknown color = %v, want ErrConstraint", err)
	}
	_ = st.Rollback(ctx)
}
