package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/attr"
	"github.com/goliatone/go-worldstore/gateway"
	"github.com/goliatone/go-worldstore/world"
)

// AttributeRepo stores attribute declarations: type, bounds and the
// permitted list.
type AttributeRepo struct {
	repo[string, *world.Attribute]
}

func newAttributeRepo(s *Store) *AttributeRepo {
	r := &AttributeRepo{}
	r.repo = newRepo[string, *world.Attribute](s, world.KindAttribute, attributeTable, nameArgs, r.loadMany)
	return r
}

func (r *AttributeRepo) Have(ctx context.Context, a *world.Attribute) (bool, error) {
	return r.Know(ctx, a.Name)
}

// Check returns the constraints declared for name.
func (r *AttributeRepo) Check(ctx context.Context, name string) (*attr.Check, error) {
	a, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return &a.Check, nil
}

func (r *AttributeRepo) Make(ctx context.Context, c attr.Check, opts ...WriteOption) error {
	return r.MakeMany(ctx, []attr.Check{c}, opts...)
}

func (r *AttributeRepo) MakeMany(ctx context.Context, cs []attr.Check, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		return r.make(ctx, db, cs)
	})
}

func (r *AttributeRepo) make(ctx context.Context, db bun.IDB, cs []attr.Check) error {
	if len(cs) == 0 {
		return nil
	}
	rows := make([][]any, len(cs))
	var permitted [][]any
	for i, c := range cs {
		if err := r.valid(c); err != nil {
			return err
		}
		rows[i] = []any{c.Name, string(c.Type), c.Lower, c.Upper}
		for _, v := range distinctValues(c.Permitted) {
			permitted = append(permitted, []any{c.Name, v})
		}
	}
	if err := attributeTable.Insert(ctx, db, []string{"name", "type", "lower", "upper"}, rows); err != nil {
		return classify("insert", attributeTable.Name, err)
	}
	if err := permittedTable.Insert(ctx, db, []string{"attribute", "value"}, permitted); err != nil {
		return classify("insert", permittedTable.Name, err)
	}
	for _, c := range cs {
		r.cache.Invalidate(c.Name)
	}
	return nil
}

func (r *AttributeRepo) valid(c attr.Check) error {
	if c.Name == "" {
		return invalid(r.kind, c.Name, errMissingName)
	}
	if _, err := attr.ParseType(string(c.Type)); err != nil {
		return invalid(r.kind, c.Name, err)
	}
	if c.Lower != nil && c.Upper != nil && *c.Lower > *c.Upper {
		return invalid(r.kind, c.Name, errBoundsOrder)
	}
	return nil
}

// Update rewrites type and bounds and brings the permitted list in line
// with c: new values are added, dropped ones deleted.
func (r *AttributeRepo) Update(ctx context.Context, c attr.Check, opts ...WriteOption) error {
	if err := r.valid(c); err != nil {
		return err
	}
	want := distinctValues(c.Permitted)
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		next := c
		next.Permitted = want
		if err := r.conforms(ctx, db, next); err != nil {
			return err
		}
		n, err := r.s.exec(ctx, db, "update", attributeTable.Name,
			"update attribute set type = ?, lower = ?, upper = ? where name = ?",
			string(c.Type), c.Lower, c.Upper, c.Name)
		if err != nil {
			return err
		}
		if n == 0 {
			return stale(r.kind, c.Name)
		}
		have, err := r.permitted(ctx, c.Name)
		if err != nil {
			return err
		}
		var add [][]any
		for _, v := range want {
			if !containsValue(have, v) {
				add = append(add, []any{c.Name, v})
			}
		}
		var drop [][]any
		for _, v := range have {
			if !containsValue(want, v) {
				drop = append(drop, []any{c.Name, v})
			}
		}
		if err := permittedTable.Insert(ctx, db, []string{"attribute", "value"}, add); err != nil {
			return classify("insert", permittedTable.Name, err)
		}
		if _, err := permittedTable.Delete(ctx, db, drop); err != nil {
			return classify("delete", permittedTable.Name, err)
		}
		if a, ok := r.cache.Peek(c.Name); ok {
			a.Check = next
		}
		return nil
	})
}

func (r *AttributeRepo) Write(ctx context.Context, c attr.Check, opts ...WriteOption) error {
	ok, err := r.Know(ctx, c.Name)
	if err != nil {
		return err
	}
	if ok {
		return r.Update(ctx, c, opts...)
	}
	return r.Make(ctx, c, opts...)
}

// Save writes a. It becomes the cached declaration unless one was cached
// already, which is updated instead.
func (r *AttributeRepo) Save(ctx context.Context, a *world.Attribute, opts ...WriteOption) error {
	return r.save(a.Name, a, func() error { return r.Write(ctx, a.Check, opts...) }, nil)
}

// SetBounds sets both bounds, declaring the attribute when needed. A nil
// bound removes that side.
func (r *AttributeRepo) SetBounds(ctx context.Context, name string, lower, upper *float64, opts ...WriteOption) error {
	return r.set(ctx, name, opts, func(c *attr.Check) { c.Lower, c.Upper = lower, upper })
}

// SetLower sets the lower bound. It may not pass the stored upper bound.
func (r *AttributeRepo) SetLower(ctx context.Context, name string, lower *float64, opts ...WriteOption) error {
	return r.set(ctx, name, opts, func(c *attr.Check) { c.Lower = lower })
}

// SetUpper sets the upper bound. It may not pass the stored lower bound.
func (r *AttributeRepo) SetUpper(ctx context.Context, name string, upper *float64, opts ...WriteOption) error {
	return r.set(ctx, name, opts, func(c *attr.Check) { c.Upper = upper })
}

// SetType sets the declared type; attr.TypeNone accepts any type.
func (r *AttributeRepo) SetType(ctx context.Context, name string, t attr.Type, opts ...WriteOption) error {
	if _, err := attr.ParseType(string(t)); err != nil {
		return invalid(r.kind, name, err)
	}
	return r.set(ctx, name, opts, func(c *attr.Check) { c.Type = t })
}

// set applies patch to the stored declaration of name, creating it first
// when absent. The patched declaration must still hold for every value
// already assigned.
func (r *AttributeRepo) set(ctx context.Context, name string, opts []WriteOption, patch func(*attr.Check)) error {
	if name == "" {
		return invalid(r.kind, name, errMissingName)
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		ok, err := attributeTable.Know(ctx, db, name)
		if err != nil {
			return classify("know", attributeTable.Name, err)
		}
		if !ok {
			if err := r.make(ctx, db, []attr.Check{{Name: name}}); err != nil {
				return err
			}
		}
		stored, err := r.loadMany(ctx, []string{name})
		if err != nil {
			return err
		}
		a, ok := stored[name]
		if !ok {
			return notFound(r.kind, name)
		}
		c := a.Check
		patch(&c)
		if err := r.valid(c); err != nil {
			return err
		}
		if err := r.conforms(ctx, db, c); err != nil {
			return err
		}
		if _, err := r.s.exec(ctx, db, "update", attributeTable.Name,
			"update attribute set type = ?, lower = ?, upper = ? where name = ?",
			string(c.Type), c.Lower, c.Upper, name); err != nil {
			return err
		}
		if a, ok := r.cache.Peek(name); ok {
			patch(&a.Check)
		}
		return nil
	})
}

// conforms fails when a value already assigned to c's attribute would be
// illegal under c.
func (r *AttributeRepo) conforms(ctx context.Context, db bun.IDB, c attr.Check) error {
	var rows []attributionRow
	if err := db.NewRaw("select attribute, attributed_to, value from attribution where attribute = ?",
		c.Name).Scan(ctx, &rows); err != nil {
		return classify("select", attributionTable.Name, err)
	}
	for _, row := range rows {
		if err := c.Validate(row.Value); err != nil {
			return invalid(r.kind, c.Name, fmt.Errorf("held by %s: %w", row.AttributedTo, err))
		}
	}
	return nil
}

// KnowPermitted reports whether v is on the permitted list of name.
func (r *AttributeRepo) KnowPermitted(ctx context.Context, name string, v attr.Value) (bool, error) {
	ok, err := permittedTable.Know(ctx, r.s.reader(), name, v)
	return ok, classify("know", permittedTable.Name, err)
}

// WritePermitted adds v to the permitted list of name.
func (r *AttributeRepo) WritePermitted(ctx context.Context, name string, v attr.Value, opts ...WriteOption) error {
	if v.IsZero() {
		return invalid(r.kind, name, errEmptyValue)
	}
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		ok, err := permittedTable.Know(ctx, db, name, v)
		if err != nil {
			return classify("know", permittedTable.Name, err)
		}
		if !ok {
			if err := permittedTable.Insert(ctx, db, []string{"attribute", "value"}, [][]any{{name, v}}); err != nil {
				return classify("insert", permittedTable.Name, err)
			}
		}
		if a, ok := r.cache.Peek(name); ok {
			a.AddPermitted(v)
		}
		return nil
	})
}

// DeletePermitted removes v from the permitted list of name. A value held
// only by that exception keeps it in place.
func (r *AttributeRepo) DeletePermitted(ctx context.Context, name string, v attr.Value, opts ...WriteOption) error {
	return r.s.write(ctx, opts, func(db bun.IDB) error {
		stored, err := r.loadMany(ctx, []string{name})
		if err != nil {
			return err
		}
		if a, ok := stored[name]; ok {
			c := a.Check
			c.RemovePermitted(v)
			if err := r.conforms(ctx, db, c); err != nil {
				return err
			}
		}
		if _, err := permittedTable.Delete(ctx, db, [][]any{{name, v}}); err != nil {
			return classify("delete", permittedTable.Name, err)
		}
		if a, ok := r.cache.Peek(name); ok {
			a.RemovePermitted(v)
		}
		return nil
	})
}

// Permitted returns the stored permitted list of name.
func (r *AttributeRepo) Permitted(ctx context.Context, name string) ([]attr.Value, error) {
	return r.permitted(ctx, name)
}

func (r *AttributeRepo) permitted(ctx context.Context, name string) ([]attr.Value, error) {
	var rows []permittedRow
	if err := r.s.query(ctx, &rows, "select", permittedTable.Name,
		"select attribute, value from permitted where attribute = ? order by value", name); err != nil {
		return nil, err
	}
	out := make([]attr.Value, len(rows))
	for i, row := range rows {
		out[i] = row.Value
	}
	return out, nil
}

// Delete removes the declaration with its permitted values and every
// attribution of it.
func (r *AttributeRepo) Delete(ctx context.Context, name string, opts ...WriteOption) error {
	s := r.s
	return s.write(ctx, opts, func(db bun.IDB) error {
		if _, err := s.exec(ctx, db, "delete", attributionTable.Name,
			"delete from attribution where attribute = ?", name); err != nil {
			return err
		}
		if _, err := s.exec(ctx, db, "delete", permittedTable.Name,
			"delete from permitted where attribute = ?", name); err != nil {
			return err
		}
		n, err := s.exec(ctx, db, "delete", attributeTable.Name, "delete from attribute where name = ?", name)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(r.kind, name)
		}
		s.attributions.cache.InvalidateWhere(func(k world.AttributionKey, _ *world.Attribution) bool {
			return k.Attribute == name
		})
		s.rangeCachedItems(func(it world.Item) { it.UnsetAttribute(name) })
		r.cache.Invalidate(name)
		return nil
	})
}

func (r *AttributeRepo) loadMany(ctx context.Context, names []string) (map[string]*world.Attribute, error) {
	var rows []attributeRow
	if err := attributeTable.Select(ctx, r.s.reader(), &rows, []string{"type", "lower", "upper"}, gateway.Keys(names)); err != nil {
		return nil, classify("select", attributeTable.Name, err)
	}
	out := make(map[string]*world.Attribute, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	for _, row := range rows {
		t, err := attr.ParseType(row.Type)
		if err != nil {
			return nil, invalid(r.kind, row.Name, err)
		}
		out[row.Name] = &world.Attribute{Check: attr.Check{
			Name:  row.Name,
			Type:  t,
			Lower: row.Lower,
			Upper: row.Upper,
		}}
	}

	var permitted []permittedRow
	q := "select attribute, value from permitted where attribute in " + gateway.ValuesRow(len(rows)) + " order by attribute, value"
	if err := r.s.query(ctx, &permitted, "select", permittedTable.Name, q, gateway.Values(keysOf(out))...); err != nil {
		return nil, err
	}
	for _, p := range permitted {
		if a, ok := out[p.Attribute]; ok {
			a.Permitted = append(a.Permitted, p.Value)
		}
	}
	return out, nil
}

func distinctValues(vs []attr.Value) []attr.Value {
	out := make([]attr.Value, 0, len(vs))
	for _, v := range vs {
		if !v.IsZero() && !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func containsValue(vs []attr.Value, v attr.Value) bool {
	for _, have := range vs {
		if have.Equal(v) {
			return true
		}
	}
	return false
}
