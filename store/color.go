package store

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/world"
)

type ColorRepo struct {
	repo[string, *world.Color]
	models repository.Repository[*colorRow]
}

func newColorRepo(s *Store) *ColorRepo {
	r := &ColorRepo{models: named(s.db, func() *colorRow { return &colorRow{} })}
	r.repo = newRepo[string, *world.Color](s, world.KindColor, colorTable, nameArgs, r.loadMany)
	return r
}

func (r *ColorRepo) Have(ctx context.Context, c *world.Color) (bool, error) {
	return r.Know(ctx, c.Name)
}

func validColor(c world.Color) error {
	channel := []validation.Rule{validation.Min(0), validation.Max(255)}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Red, channel...),
		validation.Field(&c.Green, channel...),
		validation.Field(&c.Blue, channel...),
	)
}

func (r *ColorRepo) Make(ctx context.Context, c world.Color, opts ...WriteOption) error {
	return r.MakeMany(ctx, []world.Color{c}, opts...)
}

func (r *ColorRepo) MakeMany(ctx context.Context, cs []world.Color, opts ...WriteOption) error {
	rows := make([]*colorRow, len(cs))
	for i, c := range cs {
		if err := invalid(r.kind, c.Name, validColor(c)); err != nil {
			return err
		}
		rows[i] = &colorRow{Name: c.Name, Red: c.Red, Green: c.Green, Blue: c.Blue}
	}
	if len(rows) == 0 {
		return nil
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		if _, err := r.models.CreateManyTx(ctx, db, rows); err != nil {
			return classify("insert", colorTable.Name, err)
		}
		for _, c := range cs {
			r.cache.Invalidate(c.Name)
		}
		return nil
	})
}

func (r *ColorRepo) Update(ctx context.Context, c world.Color, opts ...WriteOption) error {
	if err := invalid(r.kind, c.Name, validColor(c)); err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := r.s.exec(ctx, db, "update", colorTable.Name,
			"update color set red = ?, green = ?, blue = ? where name = ?", c.Red, c.Green, c.Blue, c.Name)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, c.Name)
		}
		if have, ok := r.cache.Peek(c.Name); ok {
			have.Red, have.Green, have.Blue = c.Red, c.Green, c.Blue
		}
		return nil
	})
}

func (r *ColorRepo) Write(ctx context.Context, c world.Color, opts ...WriteOption) error {
	ok, err := r.Know(ctx, c.Name)
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, c, opts...)
	}
	return r.Make(ctx, c, opts...)
}

func (r *ColorRepo) Save(ctx context.Context, c *world.Color, opts ...WriteOption) error {
	return r.save(c.Name, c, func() error { return r.Write(ctx, *c, opts...) }, nil)
}

// Delete removes the color. Styles still using it make storage refuse.
func (r *ColorRepo) Delete(ctx context.Context, name string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		ok, err := dropNamed(ctx, db, r.models, colorTable.Name, name)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(r.kind, name)
		}
		r.cache.Invalidate(name)
		return nil
	})
}

func (r *ColorRepo) loadMany(ctx context.Context, names []string) (map[string]*world.Color, error) {
	rows, err := listNamed(ctx, r.s, r.models, colorTable.Name, names)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*world.Color, len(rows))
	for _, row := range rows {
		out[row.Name] = &world.Color{Name: row.Name, Red: row.Red, Green: row.Green, Blue: row.Blue}
	}
	return out, nil
}
