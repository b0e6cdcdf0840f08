package store

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/world"
)

type StyleRepo struct {
	repo[string, *world.Style]
	models repository.Repository[*styleRow]
}

func newStyleRepo(s *Store) *StyleRepo {
	r := &StyleRepo{models: named(s.db, func() *styleRow { return &styleRow{} })}
	r.repo = newRepo[string, *world.Style](s, world.KindStyle, styleTable, nameArgs, r.loadMany)
	return r
}

var styleCols = []string{"fontface", "fontsize", "spacing", "bg_inactive", "bg_active", "fg_inactive", "fg_active"}

func (r *StyleRepo) Have(ctx context.Context, st *world.Style) (bool, error) {
	return r.Know(ctx, st.Name)
}

func (r *StyleRepo) Make(ctx context.Context, rec StyleRecord, opts ...WriteOption) error {
	return r.MakeMany(ctx, []StyleRecord{rec}, opts...)
}

func (r *StyleRepo) MakeMany(ctx context.Context, recs []StyleRecord, opts ...WriteOption) error {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		if err := invalid(r.kind, rec.Name, rec.Validate()); err != nil {
			return err
		}
		rows[i] = []any{rec.Name, rec.FontFace, rec.FontSize, rec.Spacing, rec.BgInactive, rec.BgActive, rec.FgInactive, rec.FgActive}
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		if err := styleTable.Insert(ctx, db, append([]string{"name"}, styleCols...), rows); err != nil {
			return classify("insert", styleTable.Name, err)
		}
		for _, rec := range recs {
			r.cache.Invalidate(rec.Name)
		}
		return nil
	})
}

func (r *StyleRepo) Update(ctx context.Context, rec StyleRecord, opts ...WriteOption) error {
	if err := invalid(r.kind, rec.Name, rec.Validate()); err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := r.s.exec(ctx, db, "update", styleTable.Name,
			"update style set fontface = ?, fontsize = ?, spacing = ?, bg_inactive = ?, bg_active = ?, fg_inactive = ?, fg_active = ? where name = ?",
			rec.FontFace, rec.FontSize, rec.Spacing, rec.BgInactive, rec.BgActive, rec.FgInactive, rec.FgActive, rec.Name)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, rec.Name)
		}
		st, ok := r.cache.Peek(rec.Name)
		if !ok {
			return nil
		}
		return r.fill(ctx, st, rec)
	})
}

func (r *StyleRepo) Write(ctx context.Context, rec StyleRecord, opts ...WriteOption) error {
	ok, err := r.Know(ctx, rec.Name)
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, rec, opts...)
	}
	return r.Make(ctx, rec, opts...)
}

func (r *StyleRepo) Save(ctx context.Context, st *world.Style, opts ...WriteOption) error {
	rec := StyleRecord{
		Name:       st.Name,
		FontFace:   st.FontFace,
		FontSize:   st.FontSize,
		Spacing:    st.Spacing,
		BgInactive: colorName(st.BgInactive),
		BgActive:   colorName(st.BgActive),
		FgInactive: colorName(st.FgInactive),
		FgActive:   colorName(st.FgActive),
	}
	write := func() error { return r.Write(ctx, rec, opts...) }
	return r.save(st.Name, st, write, func() error { return r.fill(ctx, st, rec) })
}

// Delete removes the style. Menus still using it make storage refuse.
func (r *StyleRepo) Delete(ctx context.Context, name string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := styleTable.Delete(ctx, db, [][]any{{name}})
		if err != nil {
			return classify("delete", styleTable.Name, err)
		}
		if n == 0 {
			return notFound(r.kind, name)
		}
		r.cache.Invalidate(name)
		return nil
	})
}

func (r *StyleRepo) fill(ctx context.Context, st *world.Style, rec StyleRecord) error {
	cs, err := r.s.colors.GetMany(ctx, []string{rec.BgInactive, rec.BgActive, rec.FgInactive, rec.FgActive})
	if err != nil {
		return err
	}
	st.FontFace, st.FontSize, st.Spacing = rec.FontFace, rec.FontSize, rec.Spacing
	st.BgInactive, st.BgActive = cs[rec.BgInactive], cs[rec.BgActive]
	st.FgInactive, st.FgActive = cs[rec.FgInactive], cs[rec.FgActive]
	return nil
}

func (r *StyleRepo) loadMany(ctx context.Context, names []string) (map[string]*world.Style, error) {
	rows, err := listNamed(ctx, r.s, r.models, styleTable.Name, names)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*world.Style, len(rows))
	for _, row := range rows {
		st := &world.Style{Name: row.Name}
		rec := StyleRecord{
			Name:       row.Name,
			FontFace:   row.FontFace,
			FontSize:   row.FontSize,
			Spacing:    row.Spacing,
			BgInactive: row.BgInactive,
			BgActive:   row.BgActive,
			FgInactive: row.FgInactive,
			FgActive:   row.FgActive,
		}
		if err := r.fill(ctx, st, rec); err != nil {
			return nil, err
		}
		out[row.Name] = st
	}
	return out, nil
}

func colorName(c *world.Color) string {
	if c == nil {
		return ""
	}
	return c.Name
}
