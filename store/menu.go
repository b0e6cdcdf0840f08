package store

import (
	"context"
	"sort"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

// MenuRepo stores menus. A loaded menu carries its style and its items in
// index order.
type MenuRepo struct {
	repo[string, *world.Menu]
}

func newMenuRepo(s *Store) *MenuRepo {
	r := &MenuRepo{}
	r.repo = newRepo[string, *world.Menu](s, world.KindMenu, menuTable, nameArgs, r.loadMany)
	return r
}

func (r *MenuRepo) Have(ctx context.Context, m *world.Menu) (bool, error) {
	return r.Know(ctx, m.Name)
}

func (r *MenuRepo) Make(ctx context.Context, rec MenuRecord, opts ...WriteOption) error {
	return r.MakeMany(ctx, []MenuRecord{rec}, opts...)
}

func (r *MenuRepo) MakeMany(ctx context.Context, recs []MenuRecord, opts ...WriteOption) error {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		if err := invalid(r.kind, rec.Name, rec.Validate()); err != nil {
			return err
		}
		rows[i] = []any{rec.Name, rec.X, rec.Y, rec.Width, rec.Height, rec.Style, rec.Visible}
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		if err := menuTable.Insert(ctx, db, []string{"name", "x", "y", "width", "height", "style", "visible"}, rows); err != nil {
			return classify("insert", menuTable.Name, err)
		}
		for _, rec := range recs {
			r.cache.Invalidate(rec.Name)
		}
		return nil
	})
}

// Update rewrites geometry and style. Visibility is fixed when the menu is
// made and rec.Visible is ignored.
func (r *MenuRepo) Update(ctx context.Context, rec MenuRecord, opts ...WriteOption) error {
	if err := invalid(r.kind, rec.Name, rec.Validate()); err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := r.s.exec(ctx, db, "update", menuTable.Name,
			"update menu set x = ?, y = ?, width = ?, height = ?, style = ? where name = ?",
			rec.X, rec.Y, rec.Width, rec.Height, rec.Style, rec.Name)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, rec.Name)
		}
		m, ok := r.cache.Peek(rec.Name)
		if !ok {
			return nil
		}
		st, err := r.s.styles.Get(ctx, rec.Style)
		if err != nil {
			return err
		}
		m.X, m.Y, m.Width, m.Height, m.Style = rec.X, rec.Y, rec.Width, rec.Height, st
		return nil
	})
}

func (r *MenuRepo) Write(ctx context.Context, rec MenuRecord, opts ...WriteOption) error {
	ok, err := r.Know(ctx, rec.Name)
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, rec, opts...)
	}
	return r.Make(ctx, rec, opts...)
}

func (r *MenuRepo) Save(ctx context.Context, m *world.Menu, opts ...WriteOption) error {
	rec := MenuRecord{Name: m.Name, X: m.X, Y: m.Y, Width: m.Width, Height: m.Height, Visible: m.Visible}
	if m.Style != nil {
		rec.Style = m.Style.Name
	}
	link := func() error {
		m.Style = nil
		if rec.Style != "" {
			st, err := r.s.styles.Get(ctx, rec.Style)
			if err != nil {
				return err
			}
			m.Style = st
		}
		m.Items = nil
		return r.items(ctx, map[string]*world.Menu{m.Name: m})
	}
	return r.save(m.Name, m, func() error { return r.Write(ctx, rec, opts...) }, link)
}

// Delete removes the menu and its items.
func (r *MenuRepo) Delete(ctx context.Context, name string, opts ...WriteOption) error {
	s := r.s
	return s.write(ctx, opts, func(db bun.IDB) error {
		if _, err := s.exec(ctx, db, "delete", menuItemTable.Name, "delete from menuitem where menu = ?", name); err != nil {
			return err
		}
		n, err := menuTable.Delete(ctx, db, [][]any{{name}})
		if err != nil {
			return classify("delete", menuTable.Name, err)
		}
		if n == 0 {
			return notFound(r.kind, name)
		}
		s.menuItems.cache.InvalidateWhere(func(k world.MenuItemKey, _ *world.MenuItem) bool { return k.Menu == name })
		r.cache.Invalidate(name)
		return nil
	})
}

// addItem and removeItem keep a cached menu's item list current.
func (r *MenuRepo) addItem(it *world.MenuItem) {
	m, ok := r.cache.Peek(it.Menu)
	if !ok {
		return
	}
	for i, have := range m.Items {
		if have.Index == it.Index {
			m.Items[i] = it
			return
		}
	}
	m.Items = append(m.Items, it)
	sort.Slice(m.Items, func(i, j int) bool { return m.Items[i].Index < m.Items[j].Index })
}

func (r *MenuRepo) removeItem(key world.MenuItemKey) {
	m, ok := r.cache.Peek(key.Menu)
	if !ok {
		return
	}
	out := m.Items[:0]
	for _, it := range m.Items {
		if it.Index != key.Index {
			out = append(out, it)
		}
	}
	m.Items = out
}

func (r *MenuRepo) loadMany(ctx context.Context, names []string) (map[string]*world.Menu, error) {
	s := r.s
	var rows []menuRow
	if err := menuTable.Select(ctx, s.reader(), &rows, []string{"x", "y", "width", "height", "style", "visible"}, gateway.Keys(names)); err != nil {
		return nil, classify("select", menuTable.Name, err)
	}
	out := make(map[string]*world.Menu, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	styles := make([]string, len(rows))
	for i, row := range rows {
		styles[i] = row.Style
	}
	sts, err := s.styles.GetMany(ctx, styles)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.Name] = &world.Menu{
			Name:    row.Name,
			X:       row.X,
			Y:       row.Y,
			Width:   row.Width,
			Height:  row.Height,
			Style:   sts[row.Style],
			Visible: row.Visible,
		}
	}
	if err := r.items(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// items fills the item lists of menus in index order.
func (r *MenuRepo) items(ctx context.Context, menus map[string]*world.Menu) error {
	s := r.s
	var items []menuItemRow
	q := "select menu, idx, text, onclick, closer from menuitem where menu in " +
		gateway.ValuesRow(len(menus)) + " order by menu, idx"
	if err := s.query(ctx, &items, "select", menuItemTable.Name, q, gateway.Values(keysOf(menus))...); err != nil {
		return err
	}
	keys := make([]world.MenuItemKey, len(items))
	for i, it := range items {
		keys[i] = world.MenuItemKey{Menu: it.Menu, Index: it.Idx}
	}
	got, err := s.menuItems.GetMany(ctx, keys)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if it, ok := got[k]; ok {
			menus[k.Menu].Items = append(menus[k.Menu].Items, it)
		}
	}
	return nil
}
