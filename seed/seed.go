// Package seed reads world defaults from YAML and inserts them into a store
// in one batch.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-worldstore/attr"
	"github.com/goliatone/go-worldstore/store"
	"github.com/goliatone/go-worldstore/world"
)

//go:embed defaults.yaml
var defaultsYAML string

type Attribute struct {
	Name      string       `yaml:"name"`
	Type      attr.Type    `yaml:"type"`
	Lower     *float64     `yaml:"lower"`
	Upper     *float64     `yaml:"upper"`
	Permitted []attr.Value `yaml:"permitted"`
}

type Attribution struct {
	Item      string     `yaml:"item"`
	Attribute string     `yaml:"attribute"`
	Value     attr.Value `yaml:"value"`
}

type Image struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	RLTile bool   `yaml:"rltile"`
}

type Color struct {
	Name  string `yaml:"name"`
	Red   int    `yaml:"red"`
	Green int    `yaml:"green"`
	Blue  int    `yaml:"blue"`
}

type MenuItem struct {
	Menu    string `yaml:"menu"`
	Index   int    `yaml:"idx"`
	Text    string `yaml:"text"`
	OnClick string `yaml:"onclick"`
	Closer  bool   `yaml:"closer"`
}

type Route struct {
	Thing       string             `yaml:"thing"`
	Destination string             `yaml:"destination"`
	Steps       []store.StepRecord `yaml:"steps"`
}

// Defaults lists everything a fresh world starts with.
type Defaults struct {
	Dimensions   []string             `yaml:"dimensions"`
	Colors       []Color              `yaml:"colors"`
	Styles       []store.StyleRecord  `yaml:"styles"`
	Menus        []store.MenuRecord   `yaml:"menus"`
	MenuItems    []MenuItem           `yaml:"menuitems"`
	Places       []store.PlaceRecord  `yaml:"places"`
	Portals      []store.PortalRecord `yaml:"portals"`
	Things       []store.ThingRecord  `yaml:"things"`
	Attributes   []Attribute          `yaml:"attributes"`
	Attributions []Attribution        `yaml:"attributions"`
	Images       []Image              `yaml:"images"`
	Boards       []store.BoardRecord  `yaml:"boards"`
	Spots        []store.SpotRecord   `yaml:"spots"`
	Pawns        []store.PawnRecord   `yaml:"pawns"`
	Routes       []Route              `yaml:"routes"`
}

// Load decodes defaults from r. Unknown keys are an error.
func Load(r io.Reader) (Defaults, error) {
	var d Defaults
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return Defaults{}, fmt.Errorf("seed: %w", err)
	}
	return d, nil
}

func LoadFile(path string) (Defaults, error) {
	f, err := os.Open(path)
	if err != nil {
		return Defaults{}, fmt.Errorf("seed: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Builtin returns the defaults shipped with the module.
func Builtin() Defaults {
	d, err := Load(strings.NewReader(defaultsYAML))
	if err != nil {
		panic(err)
	}
	return d
}

// Apply inserts d into st inside one batch, in dependency order. Dimensions
// that already exist are skipped. Any failure rolls the whole batch back.
func Apply(ctx context.Context, st *store.Store, d Defaults) error {
	return st.Batch(ctx, func(ctx context.Context) error {
		var dims []string
		for _, name := range d.Dimensions {
			ok, err := st.Dimensions().Know(ctx, name)
			if err != nil {
				return err
			}
			if !ok {
				dims = append(dims, name)
			}
		}
		steps := []struct {
			what string
			run  func() error
		}{
			{"dimensions", func() error { return st.Dimensions().MakeMany(ctx, dims) }},
			{"colors", func() error { return st.Colors().MakeMany(ctx, d.colors()) }},
			{"styles", func() error { return st.Styles().MakeMany(ctx, d.Styles) }},
			{"menus", func() error { return st.Menus().MakeMany(ctx, d.Menus) }},
			{"menuitems", func() error { return st.MenuItems().MakeMany(ctx, d.menuItems()) }},
			{"places", func() error { return st.Places().MakeMany(ctx, d.Places) }},
			{"portals", func() error { return st.Portals().MakeMany(ctx, d.Portals) }},
			{"things", func() error { return st.Things().MakeMany(ctx, d.Things) }},
			{"attributes", func() error { return st.Attributes().MakeMany(ctx, d.checks()) }},
			{"attributions", func() error { return st.Attributions().MakeMany(ctx, d.attributions()) }},
			{"images", func() error { return st.Images().MakeMany(ctx, d.images()) }},
			{"boards", func() error { return st.Boards().MakeMany(ctx, d.Boards) }},
			{"spots", func() error { return st.Spots().MakeMany(ctx, d.Spots) }},
			{"pawns", func() error { return st.Pawns().MakeMany(ctx, d.Pawns) }},
			{"routes", func() error {
				for _, rt := range d.Routes {
					key := world.RouteKey{Thing: rt.Thing, Destination: rt.Destination}
					if err := st.Routes().Make(ctx, key, rt.Steps); err != nil {
						return err
					}
				}
				return nil
			}},
		}
		for _, s := range steps {
			if err := s.run(); err != nil {
				return fmt.Errorf("seed: %s: %w", s.what, err)
			}
		}
		return nil
	})
}

func (d Defaults) colors() []world.Color {
	out := make([]world.Color, len(d.Colors))
	for i, c := range d.Colors {
		out[i] = world.Color{Name: c.Name, Red: c.Red, Green: c.Green, Blue: c.Blue}
	}
	return out
}

func (d Defaults) menuItems() []world.MenuItem {
	out := make([]world.MenuItem, len(d.MenuItems))
	for i, m := range d.MenuItems {
		out[i] = world.MenuItem{Menu: m.Menu, Index: m.Index, Text: m.Text, OnClick: m.OnClick, Closer: m.Closer}
	}
	return out
}

func (d Defaults) checks() []attr.Check {
	out := make([]attr.Check, len(d.Attributes))
	for i, a := range d.Attributes {
		out[i] = attr.Check{Name: a.Name, Type: a.Type, Lower: a.Lower, Upper: a.Upper, Permitted: a.Permitted}
	}
	return out
}

func (d Defaults) attributions() []world.Attribution {
	out := make([]world.Attribution, len(d.Attributions))
	for i, a := range d.Attributions {
		out[i] = world.Attribution{Attribute: a.Attribute, Item: a.Item, Value: a.Value}
	}
	return out
}

func (d Defaults) images() []world.Image {
	out := make([]world.Image, len(d.Images))
	for i, img := range d.Images {
		out[i] = world.Image{Name: img.Name, Path: img.Path, RLTile: img.RLTile}
	}
	return out
}
