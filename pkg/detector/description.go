package detector

import (
	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/material"
	"github.com/chazu/detgeom/pkg/solid"
	"github.com/chazu/detgeom/pkg/units"
	"github.com/chazu/detgeom/pkg/vis"
)

// Params are the tunable inputs of the reference detector.
type Params struct {
	FastLength   float64 `yaml:"fastLength"`   // fast scintillator length, mm
	FastWidth    float64 `yaml:"fastWidth"`    // fast scintillator face-to-axis distance, mm
	WorldHalf    float64 `yaml:"worldHalf"`    // world half-length, mm
	OverlapCheck bool    `yaml:"overlapCheck"` // flag copied onto every placement
	Decorate     bool    `yaml:"decorate"`     // attach display styles
}

// DefaultParams returns the reference configuration.
func DefaultParams() Params {
	return Params{
		FastLength:   120.0 * units.MM,
		FastWidth:    13.875 * units.MM,
		WorldHalf:    300.0 * units.CM,
		OverlapCheck: true,
		Decorate:     true,
	}
}

// CompositeSpec defines a material from element mass fractions.
type CompositeSpec struct {
	Name      string              `yaml:"name"`
	Density   float64             `yaml:"density"` // g/cm3
	Fractions []material.Fraction `yaml:"fractions"`
}

// BooleanSpec combines two solids already built, referenced by name.
type BooleanSpec struct {
	Name      string          `yaml:"name"`
	Op        solid.Op        `yaml:"op"`
	Left      string          `yaml:"left"`
	Right     string          `yaml:"right"`
	Placement *geom.Transform `yaml:"placement,omitempty"`
}

// VolumeSpec pairs a solid with a material under a volume name.
type VolumeSpec struct {
	Name     string `yaml:"name"`
	Solid    string `yaml:"solid"`
	Material string `yaml:"material"`
}

// PlacementSpec places Volume inside Mother.
type PlacementSpec struct {
	Volume    string         `yaml:"volume"`
	Mother    string         `yaml:"mother"`
	Transform geom.Transform `yaml:"transform"`
	CopyNo    int            `yaml:"copyNo"`
}

// SensitiveSpec registers a detector and optionally attaches it to a
// volume. An empty Volume registers the detector without attaching it.
type SensitiveSpec struct {
	Detector string `yaml:"detector"`
	Volume   string `yaml:"volume,omitempty"`
}

// StyleSpec attaches a display style to a volume.
type StyleSpec struct {
	Volume string    `yaml:"volume"`
	Style  vis.Style `yaml:"style"`
}

// Description is a declarative detector. Every list is processed in
// order; booleans must come after their operands and placements after both
// volumes they name.
type Description struct {
	Elements     []string        `yaml:"elements,omitempty"`
	Materials    []string        `yaml:"materials,omitempty"`
	Composites   []CompositeSpec `yaml:"composites,omitempty"`
	Primitives   []solid.Solid   `yaml:"-"`
	Booleans     []BooleanSpec   `yaml:"booleans,omitempty"`
	Volumes      []VolumeSpec    `yaml:"volumes"`
	Placements   []PlacementSpec `yaml:"placements"`
	World        string          `yaml:"world"`
	Sensitive    []SensitiveSpec `yaml:"sensitive,omitempty"`
	Styles       []StyleSpec     `yaml:"styles,omitempty"`
	OverlapCheck *bool           `yaml:"overlapCheck,omitempty"` // nil follows Params.OverlapCheck
}

// OverlapEnabled resolves the overlap-check flag of d against p.
func (d Description) OverlapEnabled(p Params) bool {
	if d.OverlapCheck != nil {
		return *d.OverlapCheck
	}
	return p.OverlapCheck
}
