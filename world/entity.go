package world

import "github.com/goliatone/go-worldstore/attr"

// Attribute is the declaration of an attribute and its constraints.
type Attribute struct {
	attr.Check
}

func (a *Attribute) Kind() Kind { return KindAttribute }

// AttributionKey identifies the value of one attribute on one item.
type AttributionKey struct {
	Attribute string
	Item      string
}

// Attribution is the value of an attribute on an item.
type Attribution struct {
	Attribute string
	Item      string
	Value     attr.Value
}

func (a *Attribution) Kind() Kind { return KindAttribution }

func (a *Attribution) Key() AttributionKey {
	return AttributionKey{Attribute: a.Attribute, Item: a.Item}
}

// Image is a reference to a picture on disk. Pixels are never held here.
type Image struct {
	Name   string
	Path   string
	RLTile bool
}

func (i *Image) Kind() Kind { return KindImage }

type Board struct {
	Name      string
	Dimension string
	Width     int
	Height    int
	Wallpaper *Image
}

func (b *Board) Kind() Kind { return KindBoard }

// SpotKey identifies a place drawn on a board.
type SpotKey struct {
	Place string
	Board string
}

// Spot is where a place is drawn on a board.
type Spot struct {
	Place *Place
	Board *Board
	X, Y  int
	R     int
}

func (s *Spot) Kind() Kind { return KindSpot }
func (s *Spot) Key() SpotKey {
	return SpotKey{Place: s.Place.Name, Board: s.Board.Name}
}

// PawnKey identifies a thing drawn on a board.
type PawnKey struct {
	Thing string
	Board string
}

// Pawn is how a thing is drawn on a board. Spot is nil while the thing is
// not at a place shown on the board.
type Pawn struct {
	Thing *Thing
	Board *Board
	Image *Image
	Spot  *Spot
}

func (p *Pawn) Kind() Kind { return KindPawn }
func (p *Pawn) Key() PawnKey {
	return PawnKey{Thing: p.Thing.Name, Board: p.Board.Name}
}

type Color struct {
	Name  string
	Red   int
	Green int
	Blue  int
}

func (c *Color) Kind() Kind { return KindColor }

type Style struct {
	Name       string
	FontFace   string
	FontSize   int
	Spacing    int
	BgInactive *Color
	BgActive   *Color
	FgInactive *Color
	FgActive   *Color
}

func (s *Style) Kind() Kind { return KindStyle }

// Menu is a panel of items. Visible is fixed when the menu is created.
type Menu struct {
	Name    string
	X, Y    float64
	Width   float64
	Height  float64
	Style   *Style
	Visible bool
	Items   []*MenuItem
}

func (m *Menu) Kind() Kind { return KindMenu }

// MenuItemKey identifies an entry of a menu.
type MenuItemKey struct {
	Menu  string
	Index int
}

type MenuItem struct {
	Menu    string
	Index   int
	Text    string
	OnClick string
	Closer  bool
}

func (m *MenuItem) Kind() Kind       { return KindMenuItem }
func (m *MenuItem) Key() MenuItemKey { return MenuItemKey{Menu: m.Menu, Index: m.Index} }

// RouteKey identifies the planned route of a thing to a place.
type RouteKey struct {
	Thing       string
	Destination string
}

// Step is one leg of a route. Progress is in [0, 1).
type Step struct {
	Ordinal  int
	Progress float64
	Portal   *Portal
}

type Route struct {
	Thing       *Thing
	Destination *Place
	Steps       []Step
}

func (r *Route) Kind() Kind { return KindRoute }
func (r *Route) Key() RouteKey {
	return RouteKey{Thing: r.Thing.Name, Destination: r.Destination.Name}
}
