package store

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/world"
)

type BoardRepo struct {
	repo[string, *world.Board]
	models repository.Repository[*boardRow]
}

func newBoardRepo(s *Store) *BoardRepo {
	r := &BoardRepo{models: named(s.db, func() *boardRow { return &boardRow{} })}
	r.repo = newRepo[string, *world.Board](s, world.KindBoard, boardTable, nameArgs, r.loadMany)
	return r
}

func (r *BoardRepo) Have(ctx context.Context, b *world.Board) (bool, error) {
	return r.Know(ctx, b.Name)
}

func (r *BoardRepo) Make(ctx context.Context, rec BoardRecord, opts ...WriteOption) error {
	return r.MakeMany(ctx, []BoardRecord{rec}, opts...)
}

func (r *BoardRepo) MakeMany(ctx context.Context, recs []BoardRecord, opts ...WriteOption) error {
	rows := make([][]any, len(recs))
	for i := range recs {
		rec := &recs[i]
		if err := invalid(r.kind, rec.Name, rec.Validate()); err != nil {
			return err
		}
		rec.Dimension = r.s.dimensionOr(rec.Dimension)
		rows[i] = []any{rec.Name, rec.Dimension, rec.Width, rec.Height, strPtr(rec.Wallpaper)}
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		if err := boardTable.Insert(ctx, db, []string{"name", "dimension", "width", "height", "wallpaper"}, rows); err != nil {
			return classify("insert", boardTable.Name, err)
		}
		for _, rec := range recs {
			r.cache.Invalidate(rec.Name)
		}
		return nil
	})
}

func (r *BoardRepo) Update(ctx context.Context, rec BoardRecord, opts ...WriteOption) error {
	if err := invalid(r.kind, rec.Name, rec.Validate()); err != nil {
		return err
	}
	rec.Dimension = r.s.dimensionOr(rec.Dimension)
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := r.s.exec(ctx, db, "update", boardTable.Name,
			"update board set dimension = ?, width = ?, height = ?, wallpaper = ? where name = ?",
			rec.Dimension, rec.Width, rec.Height, strPtr(rec.Wallpaper), rec.Name)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, rec.Name)
		}
		b, ok := r.cache.Peek(rec.Name)
		if !ok {
			return nil
		}
		b.Dimension, b.Width, b.Height = rec.Dimension, rec.Width, rec.Height
		b.Wallpaper = nil
		if rec.Wallpaper != "" {
			img, err := r.s.images.Get(ctx, rec.Wallpaper)
			if err != nil {
				return err
			}
			b.Wallpaper = img
		}
		return nil
	})
}

func (r *BoardRepo) Write(ctx context.Context, rec BoardRecord, opts ...WriteOption) error {
	ok, err := r.Know(ctx, rec.Name)
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, rec, opts...)
	}
	return r.Make(ctx, rec, opts...)
}

func (r *BoardRepo) Save(ctx context.Context, b *world.Board, opts ...WriteOption) error {
	b.Dimension = r.s.dimensionOr(b.Dimension)
	rec := BoardRecord{Name: b.Name, Dimension: b.Dimension, Width: b.Width, Height: b.Height}
	if b.Wallpaper != nil {
		rec.Wallpaper = b.Wallpaper.Name
	}
	link := func() error {
		b.Wallpaper = nil
		if rec.Wallpaper == "" {
			return nil
		}
		img, err := r.s.images.Get(ctx, rec.Wallpaper)
		b.Wallpaper = img
		return err
	}
	return r.save(b.Name, b, func() error { return r.Write(ctx, rec, opts...) }, link)
}

// Delete removes the board with its spots and pawns.
func (r *BoardRepo) Delete(ctx context.Context, name string, opts ...WriteOption) error {
	s := r.s
	return s.write(ctx, opts, func(db bun.IDB) error {
		if _, err := s.exec(ctx, db, "delete", pawnTable.Name, "delete from pawn where board = ?", name); err != nil {
			return err
		}
		if _, err := s.exec(ctx, db, "delete", spotTable.Name, "delete from spot where board = ?", name); err != nil {
			return err
		}
		n, err := boardTable.Delete(ctx, db, [][]any{{name}})
		if err != nil {
			return classify("delete", boardTable.Name, err)
		}
		if n == 0 {
			return notFound(r.kind, name)
		}
		s.pawns.cache.InvalidateWhere(func(k world.PawnKey, _ *world.Pawn) bool { return k.Board == name })
		s.spots.cache.InvalidateWhere(func(k world.SpotKey, _ *world.Spot) bool { return k.Board == name })
		r.cache.Invalidate(name)
		return nil
	})
}

func (r *BoardRepo) loadMany(ctx context.Context, names []string) (map[string]*world.Board, error) {
	rows, err := listNamed(ctx, r.s, r.models, boardTable.Name, names)
	if err != nil {
		return nil, err
	}
	var walls []string
	for _, row := range rows {
		if row.Wallpaper != nil {
			walls = append(walls, *row.Wallpaper)
		}
	}
	imgs, err := r.s.images.GetMany(ctx, walls)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*world.Board, len(rows))
	for _, row := range rows {
		out[row.Name] = &world.Board{
			Name:      row.Name,
			Dimension: row.Dimension,
			Width:     row.Width,
			Height:    row.Height,
			Wallpaper: imgs[strVal(row.Wallpaper)],
		}
	}
	return out, nil
}
