package repositorycache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type TestRoom struct {
	Name  string
	Exits []*TestRoom
}

var errMissing = errors.New("missing")

// mockLoader serves rooms from a fixed adjacency list and records calls.
type mockLoader struct {
	mu    sync.Mutex
	calls []string
	rooms map[string][]string
	fail  error
	repo  *Repository[string, *TestRoom]
}

func (m *mockLoader) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

func (m *mockLoader) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockLoader) Load(ctx context.Context, key string) (*TestRoom, error) {
	m.recordCall("Load:" + key)
	if m.fail != nil {
		return nil, m.fail
	}
	exits, ok := m.rooms[key]
	if !ok {
		return nil, errMissing
	}
	room := &TestRoom{Name: key}
	m.repo.Put(key, room)
	for _, e := range exits {
		next, err := m.repo.Get(ctx, e)
		if err != nil {
			m.repo.Invalidate(key)
			return nil, err
		}
		room.Exits = append(room.Exits, next)
	}
	return room, nil
}

func (m *mockLoader) LoadMany(ctx context.Context, keys []string) (map[string]*TestRoom, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	m.recordCall("LoadMany:" + join(sorted))
	if m.fail != nil {
		return nil, m.fail
	}
	out := map[string]*TestRoom{}
	for _, k := range keys {
		if _, ok := m.rooms[k]; ok {
			out[k] = &TestRoom{Name: k}
		}
	}
	return out, nil
}

func join(keys []string) string {
	s := ""
	for i, k := range keys {
		if i > 0 {
			s += ","
		}
		s += k
	}
	return s
}

func newRooms(rooms map[string][]string) (*Repository[string, *TestRoom], *mockLoader) {
	loader := &mockLoader{rooms: rooms}
	repo := New[string, *TestRoom](loader)
	loader.repo = repo
	return repo, loader
}

func TestRepository_GetReturnsSameObject(t *testing.T) {
	ctx := context.Background()
	repo, loader := newRooms(map[string][]string{"hall": nil})

	first, err := repo.Get(ctx, "hall")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := repo.Get(ctx, "hall")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Fatal("expected identical pointers for repeated Get")
	}
	if calls := loader.getCalls(); len(calls) != 1 {
		t.Errorf("expected one load, got %v", calls)
	}
}

func TestRepository_GetNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo, loader := newRooms(map[string][]string{})

	for i := 0; i < 2; i++ {
		if _, err := repo.Get(ctx, "void"); !errors.Is(err, errMissing) {
			t.Fatalf("expected errMissing, got %v", err)
		}
	}
	if calls := loader.getCalls(); len(calls) != 2 {
		t.Errorf("expected a load per Get for an unknown key, got %v", calls)
	}
	if repo.Len() != 0 {
		t.Errorf("expected empty cache, got %d", repo.Len())
	}
}

func TestRepository_CyclicLoadTerminates(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRooms(map[string][]string{
		"a": {"b"},
		"b": {"a", "c"},
		"c": {"a"},
	})

	a, err := repo.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b := a.Exits[0]
	if b.Exits[0] != a {
		t.Fatal("b's exit back to a must be the canonical a")
	}
	c := b.Exits[1]
	if c.Exits[0] != a {
		t.Fatal("c's exit must be the canonical a")
	}
	if cached, _ := repo.Peek("c"); cached != c {
		t.Fatal("c must be cached during the cyclic load")
	}
}

func TestRepository_GetMany(t *testing.T) {
	ctx := context.Background()
	repo, loader := newRooms(map[string][]string{"a": nil, "b": nil, "c": nil})

	a, _ := repo.Get(ctx, "a")
	got, err := repo.GetMany(ctx, []string{"a", "b", "c", "b", "zz"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got["a"] != a {
		t.Error("cached entry must be returned as is")
	}
	if _, ok := got["zz"]; ok {
		t.Error("unknown key must be absent")
	}

	calls := loader.getCalls()
	want := []string{"Load:a", "LoadMany:b,c,zz"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, calls[i], want[i])
		}
	}

	again, _ := repo.GetMany(ctx, []string{"b", "c"})
	if again["b"] != got["b"] || again["c"] != got["c"] {
		t.Error("second GetMany must return the same objects")
	}
	if n := len(loader.getCalls()); n != 2 {
		t.Errorf("expected no further loads, got %d calls", n)
	}
}

func TestRepository_GetManyError(t *testing.T) {
	repo, loader := newRooms(map[string][]string{"a": nil})
	loader.fail = errors.New("db down")
	if _, err := repo.GetMany(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected loader error")
	}
}

func TestRepository_PutInvalidate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRooms(map[string][]string{"a": nil})

	manual := &TestRoom{Name: "a"}
	repo.Put("a", manual)
	if got, _ := repo.Get(ctx, "a"); got != manual {
		t.Fatal("Get must return the object placed with Put")
	}

	repo.Invalidate("a")
	if _, ok := repo.Peek("a"); ok {
		t.Fatal("expected a to be invalidated")
	}
	reloaded, _ := repo.Get(ctx, "a")
	if reloaded == manual {
		t.Error("expected a fresh object after invalidation")
	}

	repo.Put("b", &TestRoom{Name: "b"})
	if n := repo.InvalidateWhere(func(k string, _ *TestRoom) bool { return k == "b" }); n != 1 {
		t.Errorf("expected one entry dropped, got %d", n)
	}
}

func TestLoaderFuncs_FallbackLoadMany(t *testing.T) {
	loader := LoaderFuncs[int, string]{
		One: func(ctx context.Context, key int) (string, error) {
			if key < 0 {
				return "", errMissing
			}
			return "n", nil
		},
		Missing: func(err error) bool { return errors.Is(err, errMissing) },
	}
	got, err := loader.LoadMany(context.Background(), []int{1, -1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 entries, got %v", got)
	}
}

func TestRepository_KindLabel(t *testing.T) {
	repo, _ := newRooms(nil)
	if repo.Kind() != "testroom" {
		t.Errorf("expected kind testroom, got %s", repo.Kind())
	}
	named := New[string, *TestRoom](&mockLoader{}, WithKind[string, *TestRoom]("room"))
	if named.Kind() != "room" {
		t.Errorf("expected kind room, got %s", named.Kind())
	}
}

func TestRepository_Metrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	loader := &mockLoader{rooms: map[string][]string{"a": nil}}
	repo := New[string, *TestRoom](loader, WithMetrics[string, *TestRoom](metrics), WithKind[string, *TestRoom]("room"))
	loader.repo = repo

	_, _ = repo.Get(ctx, "a")
	_, _ = repo.Get(ctx, "a")
	_, _ = repo.Get(ctx, "missing")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	want := map[string]int64{
		"worldstore.cache.hits":        1,
		"worldstore.cache.misses":      2,
		"worldstore.cache.loads":       2,
		"worldstore.cache.load_errors": 1,
	}
	for name, value := range want {
		t.Run(name, func(t *testing.T) {
			var found *metricdata.Metrics
			for _, sm := range rm.ScopeMetrics {
				for i := range sm.Metrics {
					if sm.Metrics[i].Name == name {
						found = &sm.Metrics[i]
					}
				}
			}
			if found == nil {
				t.Fatal("metric not found")
			}
			sum, ok := found.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				t.Fatal("metric is not a populated sum")
			}
			dp := sum.DataPoints[0]
			if dp.Value != value {
				t.Errorf("value = %d, want %d", dp.Value, value)
			}
			if kind, ok := dp.Attributes.Value("kind"); !ok || kind.AsString() != "room" {
				t.Errorf("expected kind=room attribute, got %v", dp.Attributes.ToSlice())
			}
		})
	}
}
