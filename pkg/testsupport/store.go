// Package testsupport opens throwaway stores and reads fixtures for tests.
package testsupport

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/goliatone/go-worldstore/store"
)

// MemoryConfig is a store configuration backed by a private in-memory
// sqlite database with the schema created.
func MemoryConfig() store.Config {
	return store.Config{
		Driver:       store.DriverSQLite,
		DSN:          ":memory:",
		CreateSchema: true,
	}
}

// OpenStore opens a store on MemoryConfig after applying mutate, if given.
// The store is closed when the test ends.
func OpenStore(t testing.TB, mutate func(*store.Config), opts ...store.Option) *store.Store {
	t.Helper()

	cfg := MemoryConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]store.Option{store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	st, err := store.Open(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(context.Background()); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}
