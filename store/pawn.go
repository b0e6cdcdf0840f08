package store

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

// PawnRepo stores how things are drawn on boards.
type PawnRepo struct {
	repo[world.PawnKey, *world.Pawn]
}

func newPawnRepo(s *Store) *PawnRepo {
	r := &PawnRepo{}
	r.repo = newRepo[world.PawnKey, *world.Pawn](s, world.KindPawn, pawnTable,
		func(k world.PawnKey) []any { return []any{k.Thing, k.Board} }, r.loadMany)
	return r
}

func (r *PawnRepo) Have(ctx context.Context, p *world.Pawn) (bool, error) {
	return r.Know(ctx, p.Key())
}

func (r *PawnRepo) Make(ctx context.Context, rec PawnRecord, opts ...WriteOption) error {
	return r.MakeMany(ctx, []PawnRecord{rec}, opts...)
}

func (r *PawnRepo) MakeMany(ctx context.Context, recs []PawnRecord, opts ...WriteOption) error {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		key := world.PawnKey{Thing: rec.Thing, Board: rec.Board}
		if err := invalid(r.kind, key, rec.Validate()); err != nil {
			return err
		}
		rows[i] = []any{rec.Thing, rec.Board, strPtr(rec.Image), strPtr(rec.Spot)}
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		if err := pawnTable.Insert(ctx, db, []string{"thing", "board", "img", "spot"}, rows); err != nil {
			return classify("insert", pawnTable.Name, err)
		}
		for _, rec := range recs {
			r.cache.Invalidate(world.PawnKey{Thing: rec.Thing, Board: rec.Board})
		}
		return nil
	})
}

func (r *PawnRepo) Update(ctx context.Context, rec PawnRecord, opts ...WriteOption) error {
	key := world.PawnKey{Thing: rec.Thing, Board: rec.Board}
	if err := invalid(r.kind, key, rec.Validate()); err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := r.s.exec(ctx, db, "update", pawnTable.Name,
			"update pawn set img = ?, spot = ? where thing = ? and board = ?",
			strPtr(rec.Image), strPtr(rec.Spot), rec.Thing, rec.Board)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, key)
		}
		p, ok := r.cache.Peek(key)
		if !ok {
			return nil
		}
		img, sp, err := r.ends(ctx, rec)
		if err != nil {
			return err
		}
		p.Image, p.Spot = img, sp
		return nil
	})
}

func (r *PawnRepo) ends(ctx context.Context, rec PawnRecord) (*world.Image, *world.Spot, error) {
	var img *world.Image
	var sp *world.Spot
	if rec.Image != "" {
		got, err := r.s.images.Get(ctx, rec.Image)
		if err != nil {
			return nil, nil, err
		}
		img = got
	}
	if rec.Spot != "" {
		got, err := r.s.spots.Get(ctx, world.SpotKey{Place: rec.Spot, Board: rec.Board})
		if err != nil && !missing(err) {
			return nil, nil, err
		}
		sp = got
	}
	return img, sp, nil
}

func (r *PawnRepo) Write(ctx context.Context, rec PawnRecord, opts ...WriteOption) error {
	ok, err := r.Know(ctx, world.PawnKey{Thing: rec.Thing, Board: rec.Board})
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, rec, opts...)
	}
	return r.Make(ctx, rec, opts...)
}

func (r *PawnRepo) Save(ctx context.Context, p *world.Pawn, opts ...WriteOption) error {
	rec := PawnRecord{Thing: p.Thing.Name, Board: p.Board.Name}
	if p.Image != nil {
		rec.Image = p.Image.Name
	}
	if p.Spot != nil && p.Spot.Place != nil {
		rec.Spot = p.Spot.Place.Name
	}
	link := func() error {
		t, err := r.s.things.Get(ctx, rec.Thing)
		if err != nil {
			return err
		}
		b, err := r.s.boards.Get(ctx, rec.Board)
		if err != nil {
			return err
		}
		img, sp, err := r.ends(ctx, rec)
		if err != nil {
			return err
		}
		p.Thing, p.Board, p.Image, p.Spot = t, b, img, sp
		return nil
	}
	return r.save(p.Key(), p, func() error { return r.Write(ctx, rec, opts...) }, link)
}

// OnBoard returns the pawns of board ordered by thing.
func (r *PawnRepo) OnBoard(ctx context.Context, board string) ([]*world.Pawn, error) {
	var things []string
	if err := r.s.query(ctx, &things, "select", pawnTable.Name,
		"select thing from pawn where board = ? order by thing", board); err != nil {
		return nil, err
	}
	keys := make([]world.PawnKey, len(things))
	for i, t := range things {
		keys[i] = world.PawnKey{Thing: t, Board: board}
	}
	got, err := r.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]*world.Pawn, 0, len(keys))
	for _, k := range keys {
		if p, ok := got[k]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *PawnRepo) Delete(ctx context.Context, key world.PawnKey, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := pawnTable.Delete(ctx, db, [][]any{{key.Thing, key.Board}})
		if err != nil {
			return classify("delete", pawnTable.Name, err)
		}
		if n == 0 {
			return notFound(r.kind, key)
		}
		r.cache.Invalidate(key)
		return nil
	})
}

// Cull deletes the pawns of board whose thing is not in keep.
func (r *PawnRepo) Cull(ctx context.Context, board string, keep []string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		partial := gateway.Eq("board", board)
		var doomed []string
		if err := pawnTable.Except(ctx, db, &doomed, partial, "thing", gateway.Values(keep)); err != nil {
			return classify("cull", pawnTable.Name, err)
		}
		if _, err := pawnTable.DeleteExcept(ctx, db, partial, "thing", gateway.Values(keep)); err != nil {
			return classify("cull", pawnTable.Name, err)
		}
		r.s.logger.Debug("store: cull", "kind", r.kind.String(), "key", board, "removed", len(doomed))
		for _, t := range doomed {
			r.cache.Invalidate(world.PawnKey{Thing: t, Board: board})
		}
		return nil
	})
}

// dropSpot clears the spot of cached pawns standing on place in board.
func (r *PawnRepo) dropSpot(board, place string) {
	r.cache.Range(func(k world.PawnKey, p *world.Pawn) {
		if k.Board == board && p.Spot != nil && p.Spot.Place != nil && p.Spot.Place.Name == place {
			p.Spot = nil
		}
	})
}

func (r *PawnRepo) loadMany(ctx context.Context, keys []world.PawnKey) (map[world.PawnKey]*world.Pawn, error) {
	s := r.s
	var rows []pawnRow
	if err := pawnTable.Select(ctx, s.reader(), &rows, []string{"img", "spot"}, r.rows(keys)); err != nil {
		return nil, classify("select", pawnTable.Name, err)
	}
	var things, boards, imgs []string
	var spots []world.SpotKey
	for _, row := range rows {
		things = append(things, row.Thing)
		boards = append(boards, row.Board)
		if row.Img != nil {
			imgs = append(imgs, *row.Img)
		}
		if row.Spot != nil {
			spots = append(spots, world.SpotKey{Place: *row.Spot, Board: row.Board})
		}
	}
	ts, err := s.things.GetMany(ctx, things)
	if err != nil {
		return nil, err
	}
	bs, err := s.boards.GetMany(ctx, boards)
	if err != nil {
		return nil, err
	}
	is, err := s.images.GetMany(ctx, imgs)
	if err != nil {
		return nil, err
	}
	ss, err := s.spots.GetMany(ctx, spots)
	if err != nil {
		return nil, err
	}
	out := make(map[world.PawnKey]*world.Pawn, len(rows))
	for _, row := range rows {
		t, b := ts[row.Thing], bs[row.Board]
		if t == nil || b == nil {
			continue
		}
		p := &world.Pawn{Thing: t, Board: b, Image: is[strVal(row.Img)]}
		if row.Spot != nil {
			p.Spot = ss[world.SpotKey{Place: *row.Spot, Board: row.Board}]
		}
		out[world.PawnKey{Thing: row.Thing, Board: row.Board}] = p
	}
	return out, nil
}
