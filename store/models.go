package store

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// named builds the generic row repository of a table keyed by its name
// column. The rows carry no uuid so ids are always nil.
func named[T any](db *bun.DB, newRecord func() T) repository.Repository[T] {
	return repository.NewRepository[T](db, repository.ModelHandlers[T]{
		NewRecord:     newRecord,
		GetID:         func(T) uuid.UUID { return uuid.Nil },
		SetID:         func(T, uuid.UUID) {},
		GetIdentifier: func() string { return "name" },
	})
}

func selectNames(names []string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("name IN (?)", bun.In(names))
	}
}

func deleteName(name string) repository.DeleteCriteria {
	return func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("name = ?", name)
	}
}

// listNamed reads the rows called names inside the open transaction, if
// any.
func listNamed[T any](ctx context.Context, s *Store, rows repository.Repository[T], table string, names []string) ([]T, error) {
	if len(names) == 0 {
		return nil, nil
	}
	got, _, err := rows.ListTx(ctx, s.reader(), selectNames(names))
	if err != nil {
		return nil, classify("select", table, err)
	}
	return got, nil
}

// dropNamed deletes the row called name and reports whether there was one.
func dropNamed[T any](ctx context.Context, db bun.IDB, rows repository.Repository[T], table, name string) (bool, error) {
	n, err := rows.CountTx(ctx, db, selectNames([]string{name}))
	if err != nil {
		return false, classify("delete", table, err)
	}
	if n == 0 {
		return false, nil
	}
	if err := rows.DeleteManyTx(ctx, db, deleteName(name)); err != nil {
		return false, classify("delete", table, err)
	}
	return true, nil
}
