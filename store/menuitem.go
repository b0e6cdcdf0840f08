package store

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

type MenuItemRepo struct {
	repo[world.MenuItemKey, *world.MenuItem]
}

func newMenuItemRepo(s *Store) *MenuItemRepo {
	r := &MenuItemRepo{}
	r.repo = newRepo[world.MenuItemKey, *world.MenuItem](s, world.KindMenuItem, menuItemTable,
		func(k world.MenuItemKey) []any { return []any{k.Menu, k.Index} }, r.loadMany)
	return r
}

func (r *MenuItemRepo) Have(ctx context.Context, it *world.MenuItem) (bool, error) {
	return r.Know(ctx, it.Key())
}

func validMenuItem(it world.MenuItem) error {
	return validation.ValidateStruct(&it,
		validation.Field(&it.Menu, validation.Required),
		validation.Field(&it.Index, validation.Min(0)),
	)
}

func (r *MenuItemRepo) Make(ctx context.Context, it world.MenuItem, opts ...WriteOption) error {
	return r.MakeMany(ctx, []world.MenuItem{it}, opts...)
}

func (r *MenuItemRepo) MakeMany(ctx context.Context, its []world.MenuItem, opts ...WriteOption) error {
	rows := make([][]any, len(its))
	for i, it := range its {
		if err := invalid(r.kind, it.Key(), validMenuItem(it)); err != nil {
			return err
		}
		rows[i] = []any{it.Menu, it.Index, it.Text, it.OnClick, it.Closer}
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		if err := menuItemTable.Insert(ctx, db, []string{"menu", "idx", "text", "onclick", "closer"}, rows); err != nil {
			return classify("insert", menuItemTable.Name, err)
		}
		for _, it := range its {
			r.cache.Invalidate(it.Key())
			if err := r.attach(ctx, it.Key()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *MenuItemRepo) Update(ctx context.Context, it world.MenuItem, opts ...WriteOption) error {
	if err := invalid(r.kind, it.Key(), validMenuItem(it)); err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := r.s.exec(ctx, db, "update", menuItemTable.Name,
			"update menuitem set text = ?, onclick = ?, closer = ? where menu = ? and idx = ?",
			it.Text, it.OnClick, it.Closer, it.Menu, it.Index)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, it.Key())
		}
		if have, ok := r.cache.Peek(it.Key()); ok {
			have.Text, have.OnClick, have.Closer = it.Text, it.OnClick, it.Closer
		}
		return nil
	})
}

func (r *MenuItemRepo) Write(ctx context.Context, it world.MenuItem, opts ...WriteOption) error {
	ok, err := r.Know(ctx, it.Key())
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, it, opts...)
	}
	return r.Make(ctx, it, opts...)
}

func (r *MenuItemRepo) Save(ctx context.Context, it *world.MenuItem, opts ...WriteOption) error {
	link := func() error {
		r.s.menus.addItem(it)
		return nil
	}
	return r.save(it.Key(), it, func() error { return r.Write(ctx, *it, opts...) }, link)
}

// OfMenu returns the items of menu in index order.
func (r *MenuItemRepo) OfMenu(ctx context.Context, menu string) ([]*world.MenuItem, error) {
	var idx []int
	if err := r.s.query(ctx, &idx, "select", menuItemTable.Name,
		"select idx from menuitem where menu = ? order by idx", menu); err != nil {
		return nil, err
	}
	keys := make([]world.MenuItemKey, len(idx))
	for i, n := range idx {
		keys[i] = world.MenuItemKey{Menu: menu, Index: n}
	}
	got, err := r.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]*world.MenuItem, 0, len(keys))
	for _, k := range keys {
		if it, ok := got[k]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *MenuItemRepo) Delete(ctx context.Context, key world.MenuItemKey, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := menuItemTable.Delete(ctx, db, [][]any{{key.Menu, key.Index}})
		if err != nil {
			return classify("delete", menuItemTable.Name, err)
		}
		if n == 0 {
			return notFound(r.kind, key)
		}
		r.cache.Invalidate(key)
		r.s.menus.removeItem(key)
		return nil
	})
}

// Cull deletes the items of menu whose index is not in keep.
func (r *MenuItemRepo) Cull(ctx context.Context, menu string, keep []int, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		partial := gateway.Eq("menu", menu)
		var doomed []int
		if err := menuItemTable.Except(ctx, db, &doomed, partial, "idx", gateway.Values(keep)); err != nil {
			return classify("cull", menuItemTable.Name, err)
		}
		if _, err := menuItemTable.DeleteExcept(ctx, db, partial, "idx", gateway.Values(keep)); err != nil {
			return classify("cull", menuItemTable.Name, err)
		}
		r.s.logger.Debug("store: cull", "kind", r.kind.String(), "key", menu, "removed", len(doomed))
		for _, n := range doomed {
			key := world.MenuItemKey{Menu: menu, Index: n}
			r.cache.Invalidate(key)
			r.s.menus.removeItem(key)
		}
		return nil
	})
}

func (r *MenuItemRepo) attach(ctx context.Context, key world.MenuItemKey) error {
	if _, ok := r.s.menus.Cached(key.Menu); !ok {
		return nil
	}
	it, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	r.s.menus.addItem(it)
	return nil
}

func (r *MenuItemRepo) loadMany(ctx context.Context, keys []world.MenuItemKey) (map[world.MenuItemKey]*world.MenuItem, error) {
	var rows []menuItemRow
	if err := menuItemTable.Select(ctx, r.s.reader(), &rows, []string{"text", "onclick", "closer"}, r.rows(keys)); err != nil {
		return nil, classify("select", menuItemTable.Name, err)
	}
	out := make(map[world.MenuItemKey]*world.MenuItem, len(rows))
	for _, row := range rows {
		it := &world.MenuItem{Menu: row.Menu, Index: row.Idx, Text: row.Text, OnClick: row.OnClick, Closer: row.Closer}
		out[it.Key()] = it
	}
	return out, nil
}
