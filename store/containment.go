package store

import (
	"context"

	"github.com/goliatone/go-worldstore/gateway"
)

// containmentBackend stores the containment index rows. Reads see the open
// write transaction; writes join it.
type containmentBackend struct {
	s *Store
}

func (b *containmentBackend) Container(ctx context.Context, dim, contained string) (string, bool, error) {
	var rows []containmentRow
	err := b.s.query(ctx, &rows, "select", containmentTable.Name,
		"select dimension, contained, container from containment where dimension = ? and contained = ?", dim, contained)
	if err != nil || len(rows) == 0 {
		return "", false, err
	}
	return rows[0].Container, true, nil
}

func (b *containmentBackend) Containers(ctx context.Context, dim string, contained []string) (map[string]string, error) {
	out := make(map[string]string, len(contained))
	if len(contained) == 0 {
		return out, nil
	}
	var rows []containmentRow
	q := "select dimension, contained, container from containment where dimension = ? and contained in " + gateway.ValuesRow(len(contained))
	args := append([]any{dim}, gateway.Values(contained)...)
	if err := b.s.query(ctx, &rows, "select", containmentTable.Name, q, args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.Contained] = r.Container
	}
	return out, nil
}

func (b *containmentBackend) Contents(ctx context.Context, dim, container string) ([]string, error) {
	got, err := b.ContentsMany(ctx, dim, []string{container})
	if err != nil {
		return nil, err
	}
	return got[container], nil
}

func (b *containmentBackend) ContentsMany(ctx context.Context, dim string, containers []string) (map[string][]string, error) {
	out := make(map[string][]string, len(containers))
	if len(containers) == 0 {
		return out, nil
	}
	var rows []containmentRow
	q := "select dimension, contained, container from containment where dimension = ? and container in " +
		gateway.ValuesRow(len(containers)) + " order by container, contained"
	args := append([]any{dim}, gateway.Values(containers)...)
	if err := b.s.query(ctx, &rows, "select", containmentTable.Name, q, args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.Container] = append(out[r.Container], r.Contained)
	}
	return out, nil
}

func (b *containmentBackend) Put(ctx context.Context, dim, contained, container string) error {
	db, err := b.s.writer(ctx)
	if err != nil {
		return err
	}
	_, err = b.s.exec(ctx, db, "put", containmentTable.Name,
		"insert into containment (dimension, contained, container) values (?, ?, ?) "+
			"on conflict (dimension, contained) do update set container = excluded.container",
		dim, contained, container)
	return err
}

func (b *containmentBackend) Delete(ctx context.Context, dim, contained string) error {
	db, err := b.s.writer(ctx)
	if err != nil {
		return err
	}
	_, err = containmentTable.Delete(ctx, db, [][]any{{dim, contained}})
	return classify("delete", containmentTable.Name, err)
}

func (b *containmentBackend) DeleteExcept(ctx context.Context, dim, container string, keep []string) ([]string, error) {
	db, err := b.s.writer(ctx)
	if err != nil {
		return nil, err
	}
	partial := gateway.Eq("dimension", dim).And("container", container)
	var removed []string
	if err := containmentTable.Except(ctx, db, &removed, partial, "contained", gateway.Values(keep)); err != nil {
		return nil, classify("cull", containmentTable.Name, err)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if _, err := containmentTable.DeleteExcept(ctx, db, partial, "contained", gateway.Values(keep)); err != nil {
		return nil, classify("cull", containmentTable.Name, err)
	}
	return removed, nil
}
