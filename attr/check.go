package attr

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrInvalidValue is matched by every *ValidationError.
var ErrInvalidValue = errors.New("attr: invalid value")

// ValidationError reports why a value is not legal for an attribute.
type ValidationError struct {
	Attribute string
	Value     Value
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("attr: %q is not a legal value for %s: %s", e.Value.String(), e.Attribute, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidValue
}

var (
	orderableMu sync.RWMutex
	orderable   = map[Type]struct{}{
		TypeInt:   {},
		TypeFloat: {},
	}
)

// RegisterOrderable marks values of type t as comparable against numeric
// bounds.
func RegisterOrderable(t Type) {
	orderableMu.Lock()
	orderable[t] = struct{}{}
	orderableMu.Unlock()
}

// Orderable reports whether bounds apply to values of type t.
func Orderable(t Type) bool {
	orderableMu.RLock()
	_, ok := orderable[t]
	orderableMu.RUnlock()
	return ok
}

// Check is the set of constraints declared for one attribute.
type Check struct {
	Name      string
	Type      Type
	Lower     *float64
	Upper     *float64
	Permitted []Value
}

// Permits reports whether v is in the permitted list.
func (c *Check) Permits(v Value) bool {
	for _, p := range c.Permitted {
		if p.Equal(v) {
			return true
		}
	}
	return false
}

// Validate returns nil when v may be assigned to the attribute.
//
// A permitted value is always accepted, even when it violates the type or
// the bounds. Bounds only apply to orderable types.
func (c *Check) Validate(v Value) error {
	if c.Permits(v) {
		return nil
	}
	if v.IsZero() {
		return c.fail(v, "empty value")
	}
	if c.Type != TypeNone && v.Type() != c.Type {
		return c.fail(v, fmt.Sprintf("expected %s, got %s", c.Type, v.Type()))
	}
	if c.Lower == nil && c.Upper == nil {
		return nil
	}
	n, ok := v.Number()
	if !ok || !Orderable(v.Type()) {
		return nil
	}
	if math.IsNaN(n) {
		return c.fail(v, "not a number")
	}
	if c.Lower != nil && n < *c.Lower {
		return c.fail(v, fmt.Sprintf("below lower bound %g", *c.Lower))
	}
	if c.Upper != nil && n > *c.Upper {
		return c.fail(v, fmt.Sprintf("above upper bound %g", *c.Upper))
	}
	return nil
}

func (c *Check) Passes(v Value) bool {
	return c.Validate(v) == nil
}

// AddPermitted appends v unless it is already permitted.
func (c *Check) AddPermitted(v Value) {
	if !c.Permits(v) {
		c.Permitted = append(c.Permitted, v)
	}
}

// RemovePermitted drops v from the permitted list.
func (c *Check) RemovePermitted(v Value) {
	out := c.Permitted[:0]
	for _, p := range c.Permitted {
		if !p.Equal(v) {
			out = append(out, p)
		}
	}
	c.Permitted = out
}

func (c *Check) fail(v Value, reason string) error {
	return &ValidationError{Attribute: c.Name, Value: v, Reason: reason}
}

// Bound is a convenience for building optional bounds.
func Bound(f float64) *float64 {
	return &f
}
