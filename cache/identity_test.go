package cache

import (
	"sort"
	"testing"
)

type node struct{ name string }

func TestIdentity_PutGet(t *testing.T) {
	c := NewIdentity[string, *node]()
	a := &node{name: "a"}
	c.Put("a", a)

	got, ok := c.Get("a")
	if !ok || got != a {
		t.Fatalf("expected the stored pointer back, got %p, %v", got, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected miss for b")
	}

	replacement := &node{name: "a"}
	c.Put("a", replacement)
	if got, _ := c.Get("a"); got != replacement {
		t.Error("Put must replace unconditionally")
	}
}

func TestIdentity_Adopt(t *testing.T) {
	c := NewIdentity[string, *node]()
	first := &node{name: "x"}
	if got := c.Adopt("x", first); got != first {
		t.Fatal("Adopt on empty key should store the value")
	}
	if got := c.Adopt("x", &node{name: "x"}); got != first {
		t.Fatal("Adopt must keep the canonical object")
	}
}

func TestIdentity_DeleteFunc(t *testing.T) {
	c := NewIdentity[string, *node]()
	for _, k := range []string{"keep", "drop1", "drop2"} {
		c.Put(k, &node{name: k})
	}
	n := c.DeleteFunc(func(k string, _ *node) bool { return k != "keep" })
	if n != 2 {
		t.Fatalf("expected 2 deletions, got %d", n)
	}
	keys := c.Keys()
	sort.Strings(keys)
	if len(keys) != 1 || keys[0] != "keep" {
		t.Errorf("unexpected keys %v", keys)
	}

	c.Delete("keep")
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
}

func TestIdentity_Reset(t *testing.T) {
	c := NewIdentity[int, string]()
	c.Put(1, "one")
	c.Put(2, "two")
	c.Reset()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after reset, got %d", c.Len())
	}
}
