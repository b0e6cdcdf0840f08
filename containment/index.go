// Package containment keeps the "what is inside what" relation of each
// dimension in memory, mirrored to storage through a Backend.
//
// Every dimension holds two directions: contained -> container and
// container -> ordered contents. Both are faulted in from storage on demand
// and independently. SetContainer is the only mutation that moves a thing,
// so the two directions always agree.
package containment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// ErrNotFound is returned by Container when the thing is nowhere.
	ErrNotFound = errors.New("containment: no container")

	// ErrSelfContainment rejects putting something inside itself.
	ErrSelfContainment = errors.New("containment: item cannot contain itself")
)

// Backend persists containment rows.
type Backend interface {
	// Container returns the container of contained, or ok == false.
	Container(ctx context.Context, dim, contained string) (container string, ok bool, err error)
	// Containers returns the containers of the given things; things that are
	// nowhere are absent.
	Containers(ctx context.Context, dim string, contained []string) (map[string]string, error)
	// Contents returns every contained key of container in storage order.
	Contents(ctx context.Context, dim, container string) ([]string, error)
	// ContentsMany returns the contents of several containers at once.
	ContentsMany(ctx context.Context, dim string, containers []string) (map[string][]string, error)
	// Put inserts or replaces the row of contained.
	Put(ctx context.Context, dim, contained, container string) error
	// Delete removes the row of contained.
	Delete(ctx context.Context, dim, contained string) error
	// DeleteExcept removes the rows of container whose contained key is not
	// in keep, returning the removed keys.
	DeleteExcept(ctx context.Context, dim, container string, keep []string) ([]string, error)
}

// Index is the in-memory mirror of the containment table.
type Index struct {
	backend Backend
	dims    *xsync.MapOf[string, *dimension]
}

type dimension struct {
	mu          sync.Mutex
	containedIn map[string]string
	contents    map[string][]string
	// complete marks container lists known to hold every stored row.
	complete map[string]bool
}

func New(backend Backend) *Index {
	return &Index{backend: backend, dims: xsync.NewMapOf[string, *dimension]()}
}

func (x *Index) dim(name string) *dimension {
	d, _ := x.dims.LoadOrCompute(name, func() *dimension {
		return &dimension{
			containedIn: make(map[string]string),
			contents:    make(map[string][]string),
			complete:    make(map[string]bool),
		}
	})
	return d
}

// Container returns the container of contained in dim.
func (x *Index) Container(ctx context.Context, dim, contained string) (string, error) {
	d := x.dim(dim)
	d.mu.Lock()
	c, ok := d.containedIn[contained]
	d.mu.Unlock()
	if ok {
		return c, nil
	}

	c, ok, err := x.backend.Container(ctx, dim, contained)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrNotFound, contained, dim)
	}
	d.mu.Lock()
	d.link(contained, c)
	d.mu.Unlock()
	return c, nil
}

// Containers resolves several things at once. Things that are nowhere are
// absent from the result.
func (x *Index) Containers(ctx context.Context, dim string, contained []string) (map[string]string, error) {
	d := x.dim(dim)
	out := make(map[string]string, len(contained))
	var missing []string
	d.mu.Lock()
	for _, name := range contained {
		if c, ok := d.containedIn[name]; ok {
			out[name] = c
		} else {
			missing = append(missing, name)
		}
	}
	d.mu.Unlock()
	if len(missing) == 0 {
		return out, nil
	}

	found, err := x.backend.Containers(ctx, dim, missing)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	for name, c := range found {
		d.link(name, c)
		out[name] = c
	}
	d.mu.Unlock()
	return out, nil
}

// Contents returns the things held by container in dim.
func (x *Index) Contents(ctx context.Context, dim, container string) ([]string, error) {
	got, err := x.ContentsMany(ctx, dim, []string{container})
	if err != nil {
		return nil, err
	}
	return got[container], nil
}

// ContentsMany returns the contents of several containers, scanning storage
// once for the containers whose lists are not fully known.
func (x *Index) ContentsMany(ctx context.Context, dim string, containers []string) (map[string][]string, error) {
	d := x.dim(dim)
	out := make(map[string][]string, len(containers))
	var missing []string
	d.mu.Lock()
	for _, c := range containers {
		if d.complete[c] {
			out[c] = append([]string(nil), d.contents[c]...)
		} else {
			missing = append(missing, c)
		}
	}
	d.mu.Unlock()
	if len(missing) == 0 {
		return out, nil
	}

	found, err := x.backend.ContentsMany(ctx, dim, missing)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range missing {
		for _, name := range found[c] {
			d.containedIn[name] = c
		}
		d.contents[c] = append([]string(nil), found[c]...)
		d.complete[c] = true
		out[c] = append([]string(nil), found[c]...)
	}
	return out, nil
}

// SetContainer moves contained into container and returns the previous
// container ("" when it was nowhere).
func (x *Index) SetContainer(ctx context.Context, dim, contained, container string) (string, error) {
	if contained == container {
		return "", fmt.Errorf("%w: %s", ErrSelfContainment, contained)
	}
	prev, err := x.Container(ctx, dim, contained)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if prev == container {
		return prev, nil
	}
	if err := x.backend.Put(ctx, dim, contained, container); err != nil {
		return "", err
	}

	d := x.dim(dim)
	d.mu.Lock()
	if prev != "" {
		d.unlinkFrom(prev, contained)
	}
	d.containedIn[contained] = container
	d.contents[container] = appendUnique(d.contents[container], contained)
	d.mu.Unlock()
	return prev, nil
}

// Remove takes contained out of whatever holds it and returns the previous
// container ("" when it was already nowhere).
func (x *Index) Remove(ctx context.Context, dim, contained string) (string, error) {
	prev, err := x.Container(ctx, dim, contained)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if err := x.backend.Delete(ctx, dim, contained); err != nil {
		return "", err
	}
	d := x.dim(dim)
	d.mu.Lock()
	d.unlinkFrom(prev, contained)
	delete(d.containedIn, contained)
	d.mu.Unlock()
	return prev, nil
}

// Cull keeps only the listed things inside container and returns the ones
// that were taken out.
func (x *Index) Cull(ctx context.Context, dim, container string, keep []string) ([]string, error) {
	removed, err := x.backend.DeleteExcept(ctx, dim, container, keep)
	if err != nil {
		return nil, err
	}
	kept := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		kept[k] = struct{}{}
	}

	d := x.dim(dim)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range removed {
		if d.containedIn[name] == container {
			delete(d.containedIn, name)
		}
	}
	list := d.contents[container][:0]
	for _, name := range d.contents[container] {
		if _, ok := kept[name]; ok {
			list = append(list, name)
		} else if d.containedIn[name] == container {
			delete(d.containedIn, name)
		}
	}
	d.contents[container] = list
	return removed, nil
}

// Forget drops name from every dimension, in both directions. It does not
// touch storage.
func (x *Index) Forget(name string) {
	x.dims.Range(func(_ string, d *dimension) bool {
		d.mu.Lock()
		if c, ok := d.containedIn[name]; ok {
			d.unlinkFrom(c, name)
			delete(d.containedIn, name)
		}
		for held, c := range d.containedIn {
			if c == name {
				delete(d.containedIn, held)
			}
		}
		delete(d.contents, name)
		delete(d.complete, name)
		d.mu.Unlock()
		return true
	})
}

// Reset empties the mirror.
func (x *Index) Reset() {
	x.dims.Clear()
}

// link records contained -> container and, when the container's list is
// already in memory, the reverse entry too.
func (d *dimension) link(contained, container string) {
	d.containedIn[contained] = container
	if _, ok := d.contents[container]; ok {
		d.contents[container] = appendUnique(d.contents[container], contained)
	}
}

func (d *dimension) unlinkFrom(container, contained string) {
	list, ok := d.contents[container]
	if !ok {
		return
	}
	out := list[:0]
	for _, name := range list {
		if name != contained {
			out = append(out, name)
		}
	}
	d.contents[container] = out
}

func appendUnique(list []string, name string) []string {
	for _, have := range list {
		if have == name {
			return list
		}
	}
	return append(list, name)
}
