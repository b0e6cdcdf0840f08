package store

import (
	"context"
	"sort"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

// SpotRepo stores where places are drawn on boards.
type SpotRepo struct {
	repo[world.SpotKey, *world.Spot]
}

func newSpotRepo(s *Store) *SpotRepo {
	r := &SpotRepo{}
	r.repo = newRepo[world.SpotKey, *world.Spot](s, world.KindSpot, spotTable,
		func(k world.SpotKey) []any { return []any{k.Place, k.Board} }, r.loadMany)
	return r
}

func (r *SpotRepo) Have(ctx context.Context, sp *world.Spot) (bool, error) {
	return r.Know(ctx, sp.Key())
}

func (r *SpotRepo) Make(ctx context.Context, rec SpotRecord, opts ...WriteOption) error {
	return r.MakeMany(ctx, []SpotRecord{rec}, opts...)
}

func (r *SpotRepo) MakeMany(ctx context.Context, recs []SpotRecord, opts ...WriteOption) error {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		key := world.SpotKey{Place: rec.Place, Board: rec.Board}
		if err := invalid(r.kind, key, rec.Validate()); err != nil {
			return err
		}
		rows[i] = []any{rec.Place, rec.Board, rec.X, rec.Y, rec.R}
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		if err := spotTable.Insert(ctx, db, []string{"place", "board", "x", "y", "r"}, rows); err != nil {
			return classify("insert", spotTable.Name, err)
		}
		for _, rec := range recs {
			r.cache.Invalidate(world.SpotKey{Place: rec.Place, Board: rec.Board})
		}
		return nil
	})
}

func (r *SpotRepo) Update(ctx context.Context, rec SpotRecord, opts ...WriteOption) error {
	key := world.SpotKey{Place: rec.Place, Board: rec.Board}
	if err := invalid(r.kind, key, rec.Validate()); err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := r.s.exec(ctx, db, "update", spotTable.Name,
			"update spot set x = ?, y = ?, r = ? where place = ? and board = ?",
			rec.X, rec.Y, rec.R, rec.Place, rec.Board)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, key)
		}
		if sp, ok := r.cache.Peek(key); ok {
			sp.X, sp.Y, sp.R = rec.X, rec.Y, rec.R
		}
		return nil
	})
}

func (r *SpotRepo) Write(ctx context.Context, rec SpotRecord, opts ...WriteOption) error {
	ok, err := r.Know(ctx, world.SpotKey{Place: rec.Place, Board: rec.Board})
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, rec, opts...)
	}
	return r.Make(ctx, rec, opts...)
}

func (r *SpotRepo) Save(ctx context.Context, sp *world.Spot, opts ...WriteOption) error {
	rec := SpotRecord{Place: sp.Place.Name, Board: sp.Board.Name, X: sp.X, Y: sp.Y, R: sp.R}
	link := func() error {
		p, err := r.s.places.Get(ctx, rec.Place)
		if err != nil {
			return err
		}
		b, err := r.s.boards.Get(ctx, rec.Board)
		if err != nil {
			return err
		}
		sp.Place, sp.Board = p, b
		return nil
	}
	return r.save(sp.Key(), sp, func() error { return r.Write(ctx, rec, opts...) }, link)
}

// OnBoard returns the spots of board ordered by place.
func (r *SpotRepo) OnBoard(ctx context.Context, board string) ([]*world.Spot, error) {
	var places []string
	if err := r.s.query(ctx, &places, "select", spotTable.Name,
		"select place from spot where board = ? order by place", board); err != nil {
		return nil, err
	}
	keys := make([]world.SpotKey, len(places))
	for i, p := range places {
		keys[i] = world.SpotKey{Place: p, Board: board}
	}
	got, err := r.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]*world.Spot, 0, len(keys))
	for _, k := range keys {
		if sp, ok := got[k]; ok {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (r *SpotRepo) Delete(ctx context.Context, key world.SpotKey, opts ...WriteOption) error {
	s := r.s
	return s.write(ctx, opts, func(db bun.IDB) error {
		if _, err := s.exec(ctx, db, "update", pawnTable.Name,
			"update pawn set spot = null where board = ? and spot = ?", key.Board, key.Place); err != nil {
			return err
		}
		n, err := spotTable.Delete(ctx, db, [][]any{{key.Place, key.Board}})
		if err != nil {
			return classify("delete", spotTable.Name, err)
		}
		if n == 0 {
			return notFound(r.kind, key)
		}
		s.pawns.dropSpot(key.Board, key.Place)
		r.cache.Invalidate(key)
		return nil
	})
}

// Cull deletes the spots of board whose place is not in keep.
func (r *SpotRepo) Cull(ctx context.Context, board string, keep []string, opts ...WriteOption) error {
	s := r.s
	return s.write(ctx, opts, func(db bun.IDB) error {
		partial := gateway.Eq("board", board)
		var doomed []string
		if err := spotTable.Except(ctx, db, &doomed, partial, "place", gateway.Values(keep)); err != nil {
			return classify("cull", spotTable.Name, err)
		}
		if len(doomed) == 0 {
			return nil
		}
		if _, err := s.exec(ctx, db, "update", pawnTable.Name,
			"update pawn set spot = null where board = ? and spot in "+gateway.ValuesRow(len(doomed)),
			append([]any{board}, gateway.Values(doomed)...)...); err != nil {
			return err
		}
		if _, err := spotTable.DeleteExcept(ctx, db, partial, "place", gateway.Values(keep)); err != nil {
			return classify("cull", spotTable.Name, err)
		}
		s.logger.Debug("store: cull", "kind", r.kind.String(), "key", board, "removed", len(doomed))
		for _, p := range doomed {
			s.pawns.dropSpot(board, p)
			r.cache.Invalidate(world.SpotKey{Place: p, Board: board})
		}
		return nil
	})
}

func (r *SpotRepo) loadMany(ctx context.Context, keys []world.SpotKey) (map[world.SpotKey]*world.Spot, error) {
	var rows []spotRow
	if err := spotTable.Select(ctx, r.s.reader(), &rows, []string{"x", "y", "r"}, r.rows(keys)); err != nil {
		return nil, classify("select", spotTable.Name, err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Place < rows[j].Place })
	places := make([]string, len(rows))
	boards := make([]string, len(rows))
	for i, row := range rows {
		places[i], boards[i] = row.Place, row.Board
	}
	ps, err := r.s.places.GetMany(ctx, places)
	if err != nil {
		return nil, err
	}
	bs, err := r.s.boards.GetMany(ctx, boards)
	if err != nil {
		return nil, err
	}
	out := make(map[world.SpotKey]*world.Spot, len(rows))
	for _, row := range rows {
		p, b := ps[row.Place], bs[row.Board]
		if p == nil || b == nil {
			continue
		}
		out[world.SpotKey{Place: row.Place, Board: row.Board}] = &world.Spot{Place: p, Board: b, X: row.X, Y: row.Y, R: row.R}
	}
	return out, nil
}
