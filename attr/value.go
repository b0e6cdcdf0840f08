package attr

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Type names the declared type of an attribute. The empty Type means the
// attribute places no constraint on the type of its values.
type Type string

const (
	TypeNone   Type = ""
	TypeString Type = "str"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeBool   Type = "bool"
)

// ParseType converts a stored or user supplied type name into a Type.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.TrimSpace(s)); t {
	case TypeNone, TypeString, TypeInt, TypeFloat, TypeBool:
		return t, nil
	default:
		return TypeNone, fmt.Errorf("attr: unsupported type %q", s)
	}
}

// Value is an attribute value. It is one of a string, an int64, a float64 or
// a bool; the zero Value holds nothing.
type Value struct {
	typ Type
	s   string
	i   int64
	f   float64
	b   bool
}

func String(s string) Value  { return Value{typ: TypeString, s: s} }
func Int(i int64) Value      { return Value{typ: TypeInt, i: i} }
func Float(f float64) Value  { return Value{typ: TypeFloat, f: f} }
func Bool(b bool) Value      { return Value{typ: TypeBool, b: b} }
func (v Value) Type() Type   { return v.typ }
func (v Value) IsZero() bool { return v.typ == TypeNone }

// ValueOf wraps a native Go value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	default:
		return Value{}, fmt.Errorf("attr: cannot hold a value of type %T", x)
	}
}

// Interface returns the wrapped native value, or nil for the zero Value.
func (v Value) Interface() any {
	switch v.typ {
	case TypeString:
		return v.s
	case TypeInt:
		return v.i
	case TypeFloat:
		return v.f
	case TypeBool:
		return v.b
	}
	return nil
}

// Equal reports whether both values have the same type and content.
func (v Value) Equal(o Value) bool {
	return v == o
}

// Number returns the value as a float64 when it is an int or a float.
func (v Value) Number() (float64, bool) {
	switch v.typ {
	case TypeInt:
		return float64(v.i), true
	case TypeFloat:
		return v.f, true
	}
	return 0, false
}

func (v Value) String() string {
	switch v.typ {
	case TypeString:
		return v.s
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeBool:
		return strconv.FormatBool(v.b)
	}
	return "<nil>"
}

// MarshalText encodes the value as "<tag>:<content>" so that two equal
// values always produce the same bytes.
func (v Value) MarshalText() ([]byte, error) {
	var tag string
	switch v.typ {
	case TypeString:
		tag = "s"
	case TypeInt:
		tag = "i"
	case TypeFloat:
		tag = "f"
	case TypeBool:
		tag = "b"
	default:
		return nil, nil
	}
	return []byte(tag + ":" + v.String()), nil
}

func (v *Value) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*v = Value{}
		return nil
	}
	tag, content, ok := strings.Cut(string(b), ":")
	if !ok {
		return fmt.Errorf("attr: malformed value %q", b)
	}
	switch tag {
	case "s":
		*v = String(content)
	case "i":
		i, err := strconv.ParseInt(content, 10, 64)
		if err != nil {
			return fmt.Errorf("attr: malformed int %q: %w", content, err)
		}
		*v = Int(i)
	case "f":
		f, err := strconv.ParseFloat(content, 64)
		if err != nil {
			return fmt.Errorf("attr: malformed float %q: %w", content, err)
		}
		*v = Float(f)
	case "b":
		b, err := strconv.ParseBool(content)
		if err != nil {
			return fmt.Errorf("attr: malformed bool %q: %w", content, err)
		}
		*v = Bool(b)
	default:
		return fmt.Errorf("attr: unknown value tag %q", tag)
	}
	return nil
}

// Value implements driver.Valuer. The zero Value is stored as NULL.
func (v Value) Value() (driver.Value, error) {
	if v.IsZero() {
		return nil, nil
	}
	b, err := v.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (v *Value) Scan(src any) error {
	switch t := src.(type) {
	case nil:
		*v = Value{}
		return nil
	case string:
		return v.UnmarshalText([]byte(t))
	case []byte:
		return v.UnmarshalText(t)
	default:
		return fmt.Errorf("attr: cannot scan %T into Value", src)
	}
}

// UnmarshalYAML picks the value type from the scalar's resolved YAML tag, so
// `50` is an int, `0.5` a float, `true` a bool and anything else a string.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("attr: line %d: value must be a scalar", node.Line)
	}
	switch node.Tag {
	case "!!null":
		*v = Value{}
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return err
		}
		*v = Int(i)
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		*v = Float(f)
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*v = Bool(b)
	default:
		*v = String(node.Value)
	}
	return nil
}

func (v Value) MarshalYAML() (any, error) {
	return v.Interface(), nil
}
