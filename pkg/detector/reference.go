package detector

import (
	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/material"
	"github.com/chazu/detgeom/pkg/solid"
	"github.com/chazu/detgeom/pkg/units"
	"github.com/chazu/detgeom/pkg/vis"
)

// Names used by the reference detector.
const (
	WorldName  = "World"
	PogoName   = "Pogo"
	CaveName   = "PbCave"
	CollName   = "PbColl"
	SDCName    = "SDCUnit"
	FastName   = "FastScintillator"
	BGOName    = "BGObottom"
	PMTubeName = "PMTube"

	FastSD   = "fastSD"
	BottomSD = "bottomBGOSD"
	SASSD    = "SASSD"
)

const (
	air      = "G4_AIR"
	lead     = "G4_Pb"
	bgo      = "G4_BGO"
	plastic  = "G4_PLASTIC_SC_VINYLTOLUENE"
	plexi    = "G4_PLEXIGLASS"
	aluminum = "Al_6061"
)

// Al6061 is the mass composition of 6061 aluminium alloy.
var Al6061 = []material.Fraction{
	{Element: "Si", Fraction: 0.6 * units.PerCent},
	{Element: "Fe", Fraction: 0.5 * units.PerCent},
	{Element: "Cu", Fraction: 0.3 * units.PerCent},
	{Element: "Mn", Fraction: 0.1 * units.PerCent},
	{Element: "Mg", Fraction: 1.0 * units.PerCent},
	{Element: "Cr", Fraction: 0.2 * units.PerCent},
	{Element: "Zn", Fraction: 0.2 * units.PerCent},
	{Element: "Ti", Fraction: 0.1 * units.PerCent},
	{Element: "Al", Fraction: 97.0 * units.PerCent},
}

// Reference describes the polarimeter test bench: a lead cave and source
// collimator around one detector unit made of a fast plastic scintillator,
// a bottom BGO crystal and a photomultiplier tube.
//
// Invalid parameters are not reported here; the solids they produce fail
// validation when the description is built.
func Reference(p Params) Description {
	hex := func(name string, z0, z1, r float64) solid.Solid {
		s, _ := solid.NewPolyhedra(name, 0, units.FullCircle, 6, []solid.ZPlane{
			{Z: z0, RMax: r}, {Z: z1, RMax: r},
		})
		return s
	}
	box := func(name string, hx, hy, hz float64) solid.Solid {
		s, _ := solid.NewBox(name, hx, hy, hz)
		return s
	}
	tube := func(name string, rMax, hz float64) solid.Solid {
		s, _ := solid.NewTube(name, 0, rMax, hz, 0, units.FullCircle)
		return s
	}
	bgoCone, _ := solid.NewPolycone("s2_BGO", 0, units.FullCircle, []solid.ZPlane{
		{Z: 0 * units.CM, RMax: 1.15 * units.CM},
		{Z: 1.2 * units.CM, RMax: 1.15 * units.CM},
		{Z: 2.0 * units.CM, RMax: 1.612 * units.CM},
		{Z: 4.0 * units.CM, RMax: 1.612 * units.CM},
	})
	holeAt := geom.Translate(0, -8*units.MM, 300*units.MM)

	d := Description{
		Materials:  []string{air, lead, bgo, plastic, plexi},
		Composites: []CompositeSpec{{Name: aluminum, Density: 2.70 * units.GramPerCm3, Fractions: Al6061}},
		Primitives: []solid.Solid{
			box(WorldName, p.WorldHalf, p.WorldHalf, p.WorldHalf),
			box(PogoName, 95*units.CM, 95*units.CM, 95*units.CM),
			box("PbCave_out", 100*units.MM, 75*units.MM, 325*units.MM),
			box("PbCave_in", 50*units.MM, 25*units.MM, 275*units.MM),
			tube("PbCave_hole", 3.0/2.0*units.MM, 26.0*units.MM),
			box("PbColl_bloc", 25*units.MM, 25*units.MM, 13.0/2.0*units.MM),
			tube("PbColl_hole", 2.0/2.0*units.MM, 14.0/2.0*units.MM),
			hex(SDCName, -22.0*units.CM, p.FastLength, 1.499*units.CM),
			hex(FastName, 0, p.FastLength, p.FastWidth),
			hex("s1_BGO", 0, 4.0*units.CM, 1.425*units.CM),
			bgoCone,
			tube(PMTubeName, 1.15*units.CM, 9.0*units.CM),
		},
		Booleans: []BooleanSpec{
			{Name: "PbCave_nohole", Op: solid.Subtraction, Left: "PbCave_out", Right: "PbCave_in"},
			{Name: CaveName, Op: solid.Subtraction, Left: "PbCave_nohole", Right: "PbCave_hole", Placement: &holeAt},
			{Name: CollName, Op: solid.Subtraction, Left: "PbColl_bloc", Right: "PbColl_hole"},
			{Name: BGOName, Op: solid.Intersection, Left: "s1_BGO", Right: "s2_BGO"},
		},
		Volumes: []VolumeSpec{
			{Name: WorldName, Solid: WorldName, Material: air},
			{Name: PogoName, Solid: PogoName, Material: air},
			{Name: CaveName, Solid: CaveName, Material: lead},
			{Name: CollName, Solid: CollName, Material: lead},
			{Name: SDCName, Solid: SDCName, Material: air},
			{Name: FastName, Solid: FastName, Material: plastic},
			{Name: BGOName, Solid: BGOName, Material: bgo},
			{Name: PMTubeName, Solid: PMTubeName, Material: aluminum},
		},
		Placements: []PlacementSpec{
			{Volume: PogoName, Mother: WorldName},
			{Volume: CaveName, Mother: PogoName, Transform: geom.Translate(0, 10*units.MM, -140*units.MM)},
			{Volume: CollName, Mother: PogoName, Transform: geom.Translate(0, 2*units.MM, 191.5*units.MM)},
			{Volume: FastName, Mother: SDCName},
			{Volume: BGOName, Mother: SDCName, Transform: geom.Translate(0, 0, -4*units.CM)},
			{Volume: PMTubeName, Mother: SDCName, Transform: geom.Translate(0, 0, -13*units.CM)},
			{Volume: SDCName, Mother: PogoName},
		},
		World: WorldName,
		Sensitive: []SensitiveSpec{
			{Detector: FastSD, Volume: FastName},
			{Detector: BottomSD, Volume: BGOName},
			{Detector: SASSD},
		},
		Styles: []StyleSpec{
			{Volume: FastName, Style: vis.Solid(vis.LightBlue)},
			{Volume: BGOName, Style: vis.Solid(vis.Red)},
			{Volume: PMTubeName, Style: vis.Solid(vis.White)},
			{Volume: WorldName, Style: vis.Invisible},
			{Volume: PogoName, Style: vis.Invisible},
			{Volume: SDCName, Style: vis.Invisible},
		},
	}
	return d
}
