package world

import (
	"fmt"

	"github.com/goliatone/go-worldstore/attr"
)

// DefaultDimension is the dimension items belong to unless told otherwise.
const DefaultDimension = "Physical"

// Item is a place, a thing or a portal. Item names are unique across all
// three kinds.
type Item interface {
	Entity
	ItemName() string
	ItemDimension() string
	SetAttribute(name string, v attr.Value)
	UnsetAttribute(name string)
	Attribute(name string) (attr.Value, bool)
}

// Container is an item that can hold things.
type Container interface {
	Item
	AddContent(t *Thing)
	RemoveContent(name string)
	ContentNames() []string
}

// attributes is embedded by every item.
type attributes struct {
	Attributes map[string]attr.Value
}

func (a *attributes) SetAttribute(name string, v attr.Value) {
	if a.Attributes == nil {
		a.Attributes = make(map[string]attr.Value)
	}
	a.Attributes[name] = v
}

func (a *attributes) UnsetAttribute(name string) {
	delete(a.Attributes, name)
}

func (a *attributes) Attribute(name string) (attr.Value, bool) {
	v, ok := a.Attributes[name]
	return v, ok
}

// contents is the ordered list of things held by a container.
type contents struct {
	Contents []*Thing
}

func (c *contents) AddContent(t *Thing) {
	for _, have := range c.Contents {
		if have.Name == t.Name {
			return
		}
	}
	c.Contents = append(c.Contents, t)
}

func (c *contents) RemoveContent(name string) {
	out := c.Contents[:0]
	for _, have := range c.Contents {
		if have.Name != name {
			out = append(out, have)
		}
	}
	for i := len(out); i < len(c.Contents); i++ {
		c.Contents[i] = nil
	}
	c.Contents = out
}

func (c *contents) ContentNames() []string {
	names := make([]string, len(c.Contents))
	for i, t := range c.Contents {
		names[i] = t.Name
	}
	return names
}

// Place is a location in the world graph.
type Place struct {
	Name      string
	Dimension string
	Portals   []*Portal // outbound
	attributes
	contents
}

func (p *Place) Kind() Kind            { return KindPlace }
func (p *Place) ItemName() string      { return p.Name }
func (p *Place) ItemDimension() string { return p.Dimension }

// AddPortal attaches an outbound portal unless it is already listed.
func (p *Place) AddPortal(port *Portal) {
	for _, have := range p.Portals {
		if have.Name == port.Name {
			return
		}
	}
	p.Portals = append(p.Portals, port)
}

// RemovePortal detaches the outbound portal called name.
func (p *Place) RemovePortal(name string) {
	out := p.Portals[:0]
	for _, have := range p.Portals {
		if have.Name != name {
			out = append(out, have)
		}
	}
	for i := len(out); i < len(p.Portals); i++ {
		p.Portals[i] = nil
	}
	p.Portals = out
}

// Thing is an object that may sit inside a place or another thing.
type Thing struct {
	Name      string
	Dimension string
	Container Container // nil when the thing is nowhere
	attributes
	contents
}

func (t *Thing) Kind() Kind            { return KindThing }
func (t *Thing) ItemName() string      { return t.Name }
func (t *Thing) ItemDimension() string { return t.Dimension }

// ContainerName returns the container's name, or "" when nowhere.
func (t *Thing) ContainerName() string {
	if t.Container == nil {
		return ""
	}
	return t.Container.ItemName()
}

// Portal is a directed edge between two places.
type Portal struct {
	Name        string
	Dimension   string
	Map         string
	Origin      *Place
	Destination *Place
	attributes
}

func (p *Portal) Kind() Kind            { return KindPortal }
func (p *Portal) ItemName() string      { return p.Name }
func (p *Portal) ItemDimension() string { return p.Dimension }

// OriginName returns the name of the origin place.
func (p *Portal) OriginName() string {
	if p.Origin == nil {
		return ""
	}
	return p.Origin.Name
}

// DestinationName returns the name of the destination place.
func (p *Portal) DestinationName() string {
	if p.Destination == nil {
		return ""
	}
	return p.Destination.Name
}

// PortalName is the conventional name of the portal leading from one place
// to another.
func PortalName(from, to string) string {
	return fmt.Sprintf("portal[%s->%s]", from, to)
}

// ReciprocalName names the portal that reverses the edge orig -> dest.
func ReciprocalName(orig, dest string) string {
	return PortalName(dest, orig)
}

// Dimension partitions places and portals.
type Dimension struct {
	Name    string
	Places  []*Place
	Portals []*Portal
}

func (d *Dimension) Kind() Kind { return KindDimension }

var (
	_ Container = (*Place)(nil)
	_ Container = (*Thing)(nil)
	_ Item      = (*Portal)(nil)
)
