package store

import (
	"github.com/uptrace/bun"

	"github.com/goliatone/go-worldstore/attr"
	"github.com/goliatone/go-worldstore/gateway"
)

var (
	itemTable        = gateway.Table{Name: "item", Keys: []string{"name"}}
	dimensionTable   = gateway.Table{Name: "dimension", Keys: []string{"name"}}
	placeTable       = gateway.Table{Name: "place", Keys: []string{"name"}}
	thingTable       = gateway.Table{Name: "thing", Keys: []string{"name"}}
	portalTable      = gateway.Table{Name: "portal", Keys: []string{"name"}}
	containmentTable = gateway.Table{Name: "containment", Keys: []string{"dimension", "contained"}}
	attributeTable   = gateway.Table{Name: "attribute", Keys: []string{"name"}}
	permittedTable   = gateway.Table{Name: "permitted", Keys: []string{"attribute", "value"}}
	attributionTable = gateway.Table{Name: "attribution", Keys: []string{"attribute", "attributed_to"}}
	imageTable       = gateway.Table{Name: "img", Keys: []string{"name"}}
	boardTable       = gateway.Table{Name: "board", Keys: []string{"name"}}
	spotTable        = gateway.Table{Name: "spot", Keys: []string{"place", "board"}}
	pawnTable        = gateway.Table{Name: "pawn", Keys: []string{"thing", "board"}}
	colorTable       = gateway.Table{Name: "color", Keys: []string{"name"}}
	styleTable       = gateway.Table{Name: "style", Keys: []string{"name"}}
	menuTable        = gateway.Table{Name: "menu", Keys: []string{"name"}}
	menuItemTable    = gateway.Table{Name: "menuitem", Keys: []string{"menu", "idx"}}
	stepTable        = gateway.Table{Name: "step", Keys: []string{"thing", "destination", "ord"}}
	// routeTable counts each (thing, destination) once however many steps it has.
	routeTable = gateway.Table{Name: "(select distinct thing, destination from step) routes", Keys: []string{"thing", "destination"}}
)

type placeRow struct {
	bun.BaseModel `bun:"table:place"`

	Name      string `bun:"name,pk"`
	Dimension string `bun:"dimension"`
}

type thingRow struct {
	bun.BaseModel `bun:"table:thing"`

	Name      string `bun:"name,pk"`
	Dimension string `bun:"dimension"`
}

type portalRow struct {
	bun.BaseModel `bun:"table:portal"`

	Name      string `bun:"name,pk"`
	Dimension string `bun:"dimension"`
	Map       string `bun:"map"`
	FromPlace string `bun:"from_place"`
	ToPlace   string `bun:"to_place"`
}

type containmentRow struct {
	Dimension string `bun:"dimension"`
	Contained string `bun:"contained"`
	Container string `bun:"container"`
}

type attributeRow struct {
	bun.BaseModel `bun:"table:attribute"`

	Name  string   `bun:"name,pk"`
	Type  string   `bun:"type"`
	Lower *float64 `bun:"lower"`
	Upper *float64 `bun:"upper"`
}

type permittedRow struct {
	Attribute string     `bun:"attribute"`
	Value     attr.Value `bun:"value"`
}

type attributionRow struct {
	Attribute    string     `bun:"attribute"`
	AttributedTo string     `bun:"attributed_to"`
	Value        attr.Value `bun:"value"`
}

type imageRow struct {
	bun.BaseModel `bun:"table:img"`

	Name   string `bun:"name,pk"`
	Path   string `bun:"path"`
	RLTile bool   `bun:"rltile"`
}

type boardRow struct {
	bun.BaseModel `bun:"table:board"`

	Name      string  `bun:"name,pk"`
	Dimension string  `bun:"dimension"`
	Width     int     `bun:"width"`
	Height    int     `bun:"height"`
	Wallpaper *string `bun:"wallpaper"`
}

type spotRow struct {
	Place string `bun:"place"`
	Board string `bun:"board"`
	X     int    `bun:"x"`
	Y     int    `bun:"y"`
	R     int    `bun:"r"`
}

type pawnRow struct {
	Thing string  `bun:"thing"`
	Board string  `bun:"board"`
	Img   *string `bun:"img"`
	Spot  *string `bun:"spot"`
}

type colorRow struct {
	bun.BaseModel `bun:"table:color"`

	Name  string `bun:"name,pk"`
	Red   int    `bun:"red"`
	Green int    `bun:"green"`
	Blue  int    `bun:"blue"`
}

type styleRow struct {
	bun.BaseModel `bun:"table:style"`

	Name       string `bun:"name,pk"`
	FontFace   string `bun:"fontface"`
	FontSize   int    `bun:"fontsize"`
	Spacing    int    `bun:"spacing"`
	BgInactive string `bun:"bg_inactive"`
	BgActive   string `bun:"bg_active"`
	FgInactive string `bun:"fg_inactive"`
	FgActive   string `bun:"fg_active"`
}

type menuRow struct {
	bun.BaseModel `bun:"table:menu"`

	Name    string  `bun:"name,pk"`
	X       float64 `bun:"x"`
	Y       float64 `bun:"y"`
	Width   float64 `bun:"width"`
	Height  float64 `bun:"height"`
	Style   string  `bun:"style"`
	Visible bool    `bun:"visible"`
}

type menuItemRow struct {
	Menu    string `bun:"menu"`
	Idx     int    `bun:"idx"`
	Text    string `bun:"text"`
	OnClick string `bun:"onclick"`
	Closer  bool   `bun:"closer"`
}

type stepRow struct {
	Thing       string  `bun:"thing"`
	Destination string  `bun:"destination"`
	Ord         int     `bun:"ord"`
	Progress    float64 `bun:"progress"`
	Portal      string  `bun:"portal"`
}

type nameRow struct {
	Name string `bun:"name"`
}

type kindRow struct {
	Name string `bun:"name"`
	Kind string `bun:"kind"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
