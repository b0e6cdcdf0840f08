// Package world defines the entities of a simulation world: the item graph
// (places, things, portals) partitioned into dimensions, the attribute
// declarations and values attached to items, and the presentation records
// (images, boards, spots, pawns, colors, styles, menus, routes) that describe
// how the world is drawn.
//
// Entities are plain structs linked by pointers. Loading and persisting them
// is the job of the store package, which guarantees one object per key.
package world

import "fmt"

// Kind enumerates the entity kinds.
type Kind uint8

const (
	KindPlace Kind = iota + 1
	KindThing
	KindPortal
	KindDimension
	KindAttribute
	KindAttribution
	KindImage
	KindBoard
	KindSpot
	KindPawn
	KindColor
	KindStyle
	KindMenu
	KindMenuItem
	KindRoute
)

var kindNames = map[Kind]string{
	KindPlace:       "place",
	KindThing:       "thing",
	KindPortal:      "portal",
	KindDimension:   "dimension",
	KindAttribute:   "attribute",
	KindAttribution: "attribution",
	KindImage:       "image",
	KindBoard:       "board",
	KindSpot:        "spot",
	KindPawn:        "pawn",
	KindColor:       "color",
	KindStyle:       "style",
	KindMenu:        "menu",
	KindMenuItem:    "menu_item",
	KindRoute:       "route",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("world: unknown kind %q", s)
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindPlace; k <= KindRoute; k++ {
		out = append(out, k)
	}
	return out
}

// Entity is implemented by every world entity.
type Entity interface {
	Kind() Kind
}
