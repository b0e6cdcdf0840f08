package store

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/attr"
	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

// AttributionRepo stores attribute values on items. Every value is checked
// against its attribute's declaration before it is written, and again when
// it is read.
type AttributionRepo struct {
	repo[world.AttributionKey, *world.Attribution]
}

func newAttributionRepo(s *Store) *AttributionRepo {
	r := &AttributionRepo{}
	r.repo = newRepo[world.AttributionKey, *world.Attribution](s, world.KindAttribution, attributionTable,
		func(k world.AttributionKey) []any { return []any{k.Attribute, k.Item} }, r.loadMany)
	return r
}

func (r *AttributionRepo) Have(ctx context.Context, a *world.Attribution) (bool, error) {
	return r.Know(ctx, a.Key())
}

// Value returns the value of attribute on item.
func (r *AttributionRepo) Value(ctx context.Context, item, attribute string) (attr.Value, error) {
	a, err := r.Get(ctx, world.AttributionKey{Attribute: attribute, Item: item})
	if err != nil {
		return attr.Value{}, err
	}
	return a.Value, nil
}

func (r *AttributionRepo) Make(ctx context.Context, a world.Attribution, opts ...WriteOption) error {
	return r.MakeMany(ctx, []world.Attribution{a}, opts...)
}

// MakeMany validates every value, then inserts them all with one
// statement. Nothing is written when any value is illegal.
func (r *AttributionRepo) MakeMany(ctx context.Context, as []world.Attribution, opts ...WriteOption) error {
	if err := r.validate(ctx, as); err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		rows := make([][]any, len(as))
		for i, a := range as {
			rows[i] = []any{a.Attribute, a.Item, a.Value}
		}
		if err := attributionTable.Insert(ctx, db, []string{"attribute", "attributed_to", "value"}, rows); err != nil {
			return classify("insert", attributionTable.Name, err)
		}
		for _, a := range as {
			r.patch(a)
		}
		return nil
	})
}

func (r *AttributionRepo) Update(ctx context.Context, a world.Attribution, opts ...WriteOption) error {
	if err := r.validate(ctx, []world.Attribution{a}); err != nil {
		return err
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := r.s.exec(ctx, db, "update", attributionTable.Name,
			"update attribution set value = ? where attribute = ? and attributed_to = ?", a.Value, a.Attribute, a.Item)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, a.Key())
		}
		r.patch(a)
		return nil
	})
}

func (r *AttributionRepo) Write(ctx context.Context, a world.Attribution, opts ...WriteOption) error {
	ok, err := r.Know(ctx, a.Key())
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, a, opts...)
	}
	return r.Make(ctx, a, opts...)
}

// Save writes a. It becomes the cached attribution unless one was cached
// already, which is updated instead.
func (r *AttributionRepo) Save(ctx context.Context, a *world.Attribution, opts ...WriteOption) error {
	return r.save(a.Key(), a, func() error { return r.Write(ctx, *a, opts...) }, nil)
}

// Set is Write spelled from the item's side.
func (r *AttributionRepo) Set(ctx context.Context, item, attribute string, v attr.Value, opts ...WriteOption) error {
	return r.Write(ctx, world.Attribution{Attribute: attribute, Item: item, Value: v}, opts...)
}

// OnItem returns every attribute value stored for item.
func (r *AttributionRepo) OnItem(ctx context.Context, item string) (map[string]attr.Value, error) {
	got, err := r.onItems(ctx, []string{item})
	if err != nil {
		return nil, err
	}
	if got[item] == nil {
		return map[string]attr.Value{}, nil
	}
	return got[item], nil
}

func (r *AttributionRepo) onItems(ctx context.Context, items []string) (map[string]map[string]attr.Value, error) {
	out := make(map[string]map[string]attr.Value, len(items))
	if len(items) == 0 {
		return out, nil
	}
	var rows []attributionRow
	q := "select attribute, attributed_to, value from attribution where attributed_to in " +
		gateway.ValuesRow(len(items)) + " order by attributed_to, attribute"
	if err := r.s.query(ctx, &rows, "select", attributionTable.Name, q, gateway.Values(items)...); err != nil {
		return nil, err
	}
	if err := r.recheck(ctx, rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		m := out[row.AttributedTo]
		if m == nil {
			m = make(map[string]attr.Value)
			out[row.AttributedTo] = m
		}
		m[row.Attribute] = row.Value
	}
	return out, nil
}

// Delete removes attribute from item.
func (r *AttributionRepo) Delete(ctx context.Context, key world.AttributionKey, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		n, err := attributionTable.Delete(ctx, db, [][]any{{key.Attribute, key.Item}})
		if err != nil {
			return classify("delete", attributionTable.Name, err)
		}
		if n == 0 {
			return notFound(r.kind, key)
		}
		r.unpatch(key)
		return nil
	})
}

// Cull removes every attribution of item whose attribute is not in keep.
func (r *AttributionRepo) Cull(ctx context.Context, item string, keep []string, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		partial := gateway.Eq("attributed_to", item)
		var doomed []string
		if err := attributionTable.Except(ctx, db, &doomed, partial, "attribute", gateway.Values(keep)); err != nil {
			return classify("cull", attributionTable.Name, err)
		}
		if _, err := attributionTable.DeleteExcept(ctx, db, partial, "attribute", gateway.Values(keep)); err != nil {
			return classify("cull", attributionTable.Name, err)
		}
		r.s.logger.Debug("store: cull", "kind", r.kind.String(), "key", item, "removed", len(doomed))
		for _, a := range doomed {
			r.unpatch(world.AttributionKey{Attribute: a, Item: item})
		}
		return nil
	})
}

// deleteItem drops every attribution of item as part of deleting it.
func (r *AttributionRepo) deleteItem(ctx context.Context, db bun.IDB, item string) error {
	if _, err := r.s.exec(ctx, db, "delete", attributionTable.Name,
		"delete from attribution where attributed_to = ?", item); err != nil {
		return err
	}
	r.cache.InvalidateWhere(func(k world.AttributionKey, _ *world.Attribution) bool { return k.Item == item })
	return nil
}

// validate checks as against their declarations. An attribute that is not
// declared is reported as not found.
func (r *AttributionRepo) validate(ctx context.Context, as []world.Attribution) error {
	names := make([]string, len(as))
	for i, a := range as {
		names[i] = a.Attribute
	}
	checks, err := r.s.attributes.GetMany(ctx, unique(names))
	if err != nil {
		return err
	}
	for _, a := range as {
		if a.Item == "" {
			return invalid(r.kind, a.Key(), errMissingName)
		}
		c, ok := checks[a.Attribute]
		if !ok {
			return notFound(world.KindAttribute, a.Attribute)
		}
		if err := c.Validate(a.Value); err != nil {
			return err
		}
	}
	return nil
}

func (r *AttributionRepo) recheck(ctx context.Context, rows []attributionRow) error {
	as := make([]world.Attribution, len(rows))
	for i, row := range rows {
		as[i] = world.Attribution{Attribute: row.Attribute, Item: row.AttributedTo, Value: row.Value}
	}
	return r.validate(ctx, as)
}

// patch makes cached objects show a.
func (r *AttributionRepo) patch(a world.Attribution) {
	if have, ok := r.cache.Peek(a.Key()); ok {
		have.Value = a.Value
	}
	if it, ok := r.s.cachedItem(a.Item); ok {
		it.SetAttribute(a.Attribute, a.Value)
	}
}

func (r *AttributionRepo) unpatch(key world.AttributionKey) {
	r.cache.Invalidate(key)
	if it, ok := r.s.cachedItem(key.Item); ok {
		it.UnsetAttribute(key.Attribute)
	}
}

func (r *AttributionRepo) loadMany(ctx context.Context, keys []world.AttributionKey) (map[world.AttributionKey]*world.Attribution, error) {
	var rows []attributionRow
	if err := attributionTable.Select(ctx, r.s.reader(), &rows, []string{"value"}, r.rows(keys)); err != nil {
		return nil, classify("select", attributionTable.Name, err)
	}
	if err := r.recheck(ctx, rows); err != nil {
		return nil, err
	}
	out := make(map[world.AttributionKey]*world.Attribution, len(rows))
	for _, row := range rows {
		a := &world.Attribution{Attribute: row.Attribute, Item: row.AttributedTo, Value: row.Value}
		out[a.Key()] = a
	}
	return out, nil
}
