package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-worldstore/attr"
	"github.com/goliatone/go-worldstore/world"
)

var (
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalid matches every validation failure: *attr.ValidationError for
	// attribute values and *InvalidError for record rules.
	ErrInvalid = attr.ErrInvalidValue

	// ErrDuplicateKey reports an insert of a key that already exists.
	ErrDuplicateKey = errors.New("store: duplicate key")

	// ErrConstraint reports any other storage constraint violation.
	ErrConstraint = errors.New("store: constraint violation")

	// ErrStaleUpdate is returned when an update matched no row.
	ErrStaleUpdate = errors.New("store: update matched no row")

	// ErrRouteGap is returned when stored step ordinals are not 0..n-1.
	ErrRouteGap = errors.New("store: route steps are not contiguous")

	errMissingName = errors.New("name is required")
	errBoundsOrder = errors.New("lower bound above upper bound")
	errEmptyValue  = errors.New("empty value")
)

// NotFoundError names the key that storage does not know.
type NotFoundError struct {
	Kind world.Kind
	Key  any
}

func (e *NotFoundError) Error() string {
	kind := "item"
	if e.Kind != 0 {
		kind = e.Kind.String()
	}
	return fmt.Sprintf("store: %s %s not found", kind, keyString(e.Key))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(kind world.Kind, key any) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// InvalidError reports a record that breaks a field rule.
type InvalidError struct {
	Kind world.Kind
	Key  any
	Err  error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("store: invalid %s %s: %v", e.Kind, keyString(e.Key), e.Err)
}

func (e *InvalidError) Unwrap() error { return e.Err }

func (e *InvalidError) Is(target error) bool { return target == ErrInvalid }

func invalid(kind world.Kind, key any, err error) error {
	if err == nil {
		return nil
	}
	return &InvalidError{Kind: kind, Key: key, Err: err}
}

// ConstraintError wraps a driver error caused by a storage constraint.
type ConstraintError struct {
	Op        string
	Table     string
	Duplicate bool
	Err       error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

func (e *ConstraintError) Is(target error) bool {
	if target == ErrConstraint {
		return true
	}
	return e.Duplicate && target == ErrDuplicateKey
}

// classify turns driver constraint failures into *ConstraintError and wraps
// everything else with the operation name.
func classify(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		dup := serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || serr.ExtendedCode == sqlite3.ErrConstraintUnique
		return &ConstraintError{Op: op, Table: table, Duplicate: dup, Err: err}
	}
	var perr *pq.Error
	if errors.As(err, &perr) && perr.Code.Class() == "23" {
		return &ConstraintError{Op: op, Table: table, Duplicate: perr.Code == "23505", Err: err}
	}
	var nf *NotFoundError
	var inv *InvalidError
	var verr *attr.ValidationError
	if errors.As(err, &nf) || errors.As(err, &inv) || errors.As(err, &verr) {
		return err
	}
	return fmt.Errorf("store: %s %s: %w", op, table, err)
}
