package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// Table describes a keyed table.
type Table struct {
	Name string
	Keys []string
}

// Know reports whether a row with key exists.
func (t Table) Know(ctx context.Context, db bun.IDB, key ...any) (bool, error) {
	n, err := t.count(ctx, db, [][]any{key})
	return n > 0, err
}

// KnowAny reports whether at least one of keys exists. No keys means false.
func (t Table) KnowAny(ctx context.Context, db bun.IDB, keys [][]any) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}
	n, err := t.count(ctx, db, keys)
	return n > 0, err
}

// KnowAll reports whether every one of keys exists. Duplicate keys are
// counted once; no keys means true.
func (t Table) KnowAll(ctx context.Context, db bun.IDB, keys [][]any) (bool, error) {
	keys = Distinct(keys)
	if len(keys) == 0 {
		return true, nil
	}
	n, err := t.count(ctx, db, keys)
	return n == len(keys), err
}

// Insert bulk inserts rows into cols with one statement.
func (t Table) Insert(ctx context.Context, db bun.IDB, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if err := checkArity(len(cols), rows); err != nil {
		return fmt.Errorf("gateway: insert %s: %w", t.Name, err)
	}
	if _, err := db.ExecContext(ctx, InsertSQL(t.Name, cols, len(rows)), Flatten(rows)...); err != nil {
		return fmt.Errorf("gateway: insert %s: %w", t.Name, err)
	}
	return nil
}

// Select scans the key columns followed by cols for every row matching keys
// into dest, which is whatever bun's Scan accepts (a slice of structs, a
// slice of a primitive).
func (t Table) Select(ctx context.Context, db bun.IDB, dest any, cols []string, keys [][]any) error {
	if len(keys) == 0 {
		return nil
	}
	if err := checkArity(len(t.Keys), keys); err != nil {
		return fmt.Errorf("gateway: select %s: %w", t.Name, err)
	}
	q := SelectSQL(t.Name, t.Keys, cols, len(keys))
	if err := db.NewRaw(q, Flatten(keys)...).Scan(ctx, dest); err != nil {
		return fmt.Errorf("gateway: select %s: %w", t.Name, err)
	}
	return nil
}

// Delete removes the rows matching keys and returns how many went.
func (t Table) Delete(ctx context.Context, db bun.IDB, keys [][]any) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if err := checkArity(len(t.Keys), keys); err != nil {
		return 0, fmt.Errorf("gateway: delete %s: %w", t.Name, err)
	}
	res, err := db.ExecContext(ctx, DeleteSQL(t.Name, t.Keys, len(keys)), Flatten(keys)...)
	if err != nil {
		return 0, fmt.Errorf("gateway: delete %s: %w", t.Name, err)
	}
	return res.RowsAffected()
}

// Except scans the discriminators under the partial key that are not in
// keep into dest.
func (t Table) Except(ctx context.Context, db bun.IDB, dest any, partial Match, disc string, keep []any) error {
	q := SelectExceptSQL(t.Name, partial.Cols, disc, len(keep))
	if err := db.NewRaw(q, append(append([]any{}, partial.Vals...), keep...)...).Scan(ctx, dest); err != nil {
		return fmt.Errorf("gateway: except %s: %w", t.Name, err)
	}
	return nil
}

// DeleteExcept removes the rows under the partial key whose discriminator is
// not in keep. An empty partial key spans the whole table.
func (t Table) DeleteExcept(ctx context.Context, db bun.IDB, partial Match, disc string, keep []any) (int64, error) {
	if len(partial.Cols) != len(partial.Vals) {
		return 0, fmt.Errorf("gateway: cull %s: malformed partial key", t.Name)
	}
	q := DeleteExceptSQL(t.Name, partial.Cols, disc, len(keep))
	res, err := db.ExecContext(ctx, q, append(append([]any{}, partial.Vals...), keep...)...)
	if err != nil {
		return 0, fmt.Errorf("gateway: cull %s: %w", t.Name, err)
	}
	return res.RowsAffected()
}

func (t Table) count(ctx context.Context, db bun.IDB, keys [][]any) (int, error) {
	if err := checkArity(len(t.Keys), keys); err != nil {
		return 0, fmt.Errorf("gateway: know %s: %w", t.Name, err)
	}
	var n int
	if err := db.NewRaw(KnowSQL(t.Name, t.Keys, len(keys)), Flatten(keys)...).Scan(ctx, &n); err != nil {
		return 0, fmt.Errorf("gateway: know %s: %w", t.Name, err)
	}
	return n, nil
}

// Match is an equality filter over a subset of columns.
type Match struct {
	Cols []string
	Vals []any
}

// Eq builds a single column Match.
func Eq(col string, val any) Match {
	return Match{Cols: []string{col}, Vals: []any{val}}
}

// And extends m with another equality.
func (m Match) And(col string, val any) Match {
	return Match{Cols: append(append([]string{}, m.Cols...), col), Vals: append(append([]any{}, m.Vals...), val)}
}

// Keys wraps single column keys as one-element rows.
func Keys[T any](keys []T) [][]any {
	out := make([][]any, len(keys))
	for i, k := range keys {
		out[i] = []any{k}
	}
	return out
}

// Values converts a typed slice into a slice of any.
func Values[T any](vals []T) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// Distinct drops repeated keys, keeping first occurrences.
func Distinct(keys [][]any) [][]any {
	seen := make(map[string]struct{}, len(keys))
	out := make([][]any, 0, len(keys))
	for _, k := range keys {
		id := keyID(k)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, k)
	}
	return out
}

func keyID(key []any) string {
	parts := make([]string, len(key))
	for i, k := range key {
		parts[i] = fmt.Sprintf("%T=%v", k, k)
	}
	return strings.Join(parts, "\x00")
}

func checkArity(n int, rows [][]any) error {
	for i, r := range rows {
		if len(r) != n {
			return fmt.Errorf("row %d has %d values, want %d", i, len(r), n)
		}
	}
	return nil
}
