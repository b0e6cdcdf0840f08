package store

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Records carry the primitive fields of an entity, with relations given by
// key. Save derives them from objects; Make, Update and Write take them
// directly.

type PlaceRecord struct {
	Name      string `yaml:"name"`
	Dimension string `yaml:"dimension"`
}

func (r PlaceRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	)
}

// ThingRecord places a thing. An empty Container means nowhere.
type ThingRecord struct {
	Name      string `yaml:"name"`
	Dimension string `yaml:"dimension"`
	Container string `yaml:"container"`
}

func (r ThingRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Container, validation.NotIn(r.Name).Error("cannot contain itself")),
	)
}

// PortalRecord describes a directed edge. An empty Name becomes
// world.PortalName(Origin, Destination). Reciprocal asks for the reverse
// portal as well, in addition to the store's policy.
type PortalRecord struct {
	Name        string `yaml:"name"`
	Dimension   string `yaml:"dimension"`
	Map         string `yaml:"map"`
	Origin      string `yaml:"origin"`
	Destination string `yaml:"destination"`
	Reciprocal  bool   `yaml:"reciprocal"`
}

func (r PortalRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Origin, validation.Required),
		validation.Field(&r.Destination, validation.Required, validation.NotIn(r.Origin).Error("must differ from origin")),
	)
}

type BoardRecord struct {
	Name      string `yaml:"name"`
	Dimension string `yaml:"dimension"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Wallpaper string `yaml:"wallpaper"`
}

func (r BoardRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Width, validation.Min(0)),
		validation.Field(&r.Height, validation.Min(0)),
	)
}

type SpotRecord struct {
	Place string `yaml:"place"`
	Board string `yaml:"board"`
	X     int    `yaml:"x"`
	Y     int    `yaml:"y"`
	R     int    `yaml:"r"`
}

func (r SpotRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Place, validation.Required),
		validation.Field(&r.Board, validation.Required),
		validation.Field(&r.R, validation.Min(0)),
	)
}

// PawnRecord draws a thing on a board. Spot names the place whose spot on
// the same board the pawn stands on; empty when it stands nowhere.
type PawnRecord struct {
	Thing string `yaml:"thing"`
	Board string `yaml:"board"`
	Image string `yaml:"image"`
	Spot  string `yaml:"spot"`
}

func (r PawnRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Thing, validation.Required),
		validation.Field(&r.Board, validation.Required),
	)
}

type StyleRecord struct {
	Name       string `yaml:"name"`
	FontFace   string `yaml:"fontface"`
	FontSize   int    `yaml:"fontsize"`
	Spacing    int    `yaml:"spacing"`
	BgInactive string `yaml:"bg_inactive"`
	BgActive   string `yaml:"bg_active"`
	FgInactive string `yaml:"fg_inactive"`
	FgActive   string `yaml:"fg_active"`
}

func (r StyleRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.FontSize, validation.Min(1)),
		validation.Field(&r.Spacing, validation.Min(0)),
		validation.Field(&r.BgInactive, validation.Required),
		validation.Field(&r.BgActive, validation.Required),
		validation.Field(&r.FgInactive, validation.Required),
		validation.Field(&r.FgActive, validation.Required),
	)
}

// MenuRecord describes a menu. Visible only takes effect on Make.
type MenuRecord struct {
	Name    string  `yaml:"name"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	Style   string  `yaml:"style"`
	Visible bool    `yaml:"visible"`
}

func (r MenuRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Style, validation.Required),
		validation.Field(&r.X, validation.Min(0.0)),
		validation.Field(&r.Y, validation.Min(0.0)),
		validation.Field(&r.Width, validation.Min(0.0)),
		validation.Field(&r.Height, validation.Min(0.0)),
	)
}

// StepRecord is one leg of a route. Ordinals are assigned by position.
type StepRecord struct {
	Portal   string  `yaml:"portal"`
	Progress float64 `yaml:"progress"`
}

func (r StepRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Portal, validation.Required),
		validation.Field(&r.Progress, validation.Min(0.0), validation.Max(1.0).Exclusive()),
	)
}

func validProgress(p float64) error {
	return validation.Validate(p, validation.Min(0.0), validation.Max(1.0).Exclusive())
}
