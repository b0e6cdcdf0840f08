package cache

import (
	"strings"
	"testing"

	"github.com/goliatone/go-worldstore/attr"
)

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

type spotKey struct {
	Place string
	Board string
	note  string
}

func TestDefaultKeySerializer(t *testing.T) {
	serializer := NewDefaultKeySerializer()
	name := "kitchen"

	tests := []struct {
		name      string
		namespace string
		args      []any
		want      string
	}{
		{name: "no args", namespace: "img", want: "img"},
		{name: "basic types", namespace: "get", args: []any{1, "hello", true, 3.5}, want: joinWithSeparator("get", "1", "hello", "true", "3.5")},
		{name: "nil", namespace: "get", args: []any{nil}, want: joinWithSeparator("get", "nil")},
		{name: "pointer", namespace: "place", args: []any{&name}, want: joinWithSeparator("place", "kitchen")},
		{name: "struct exported fields only", namespace: "spot", args: []any{spotKey{Place: "hall", Board: "map", note: "x"}}, want: joinWithSeparator("spot", "hall|map")},
		{name: "text marshaler", namespace: "permitted", args: []any{"color", attr.String("red")}, want: joinWithSeparator("permitted", "color", "s:red")},
		{name: "slice", namespace: "many", args: []any{[]string{"a", "b"}}, want: joinWithSeparator("many", "[a,b]")},
		{name: "map sorted", namespace: "m", args: []any{map[string]int{"b": 2, "a": 1}}, want: joinWithSeparator("m", "{a=1,b=2}")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey(tt.namespace, tt.args...)
			if got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_Stable(t *testing.T) {
	serializer := NewDefaultKeySerializer()
	args := []any{map[string]int{"z": 26, "y": 25, "x": 24}, spotKey{Place: "p", Board: "b"}}
	first := serializer.SerializeKey("stable", args...)
	for i := 0; i < 20; i++ {
		if got := serializer.SerializeKey("stable", args...); got != first {
			t.Fatalf("key changed between calls: %q vs %q", first, got)
		}
	}
}
