// Package solid defines immutable shape descriptions: primitives and the
// boolean trees built from them.
//
// Solid is a sealed union. Code that needs to handle every shape switches on
// the concrete type, and the unexported marker keeps the set of variants
// closed to this package.
package solid

import (
	"fmt"
	"math"

	"github.com/chazu/detgeom/pkg/failure"
	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/units"
)

const stage = "solids"

// Solid is implemented by Box, Tube, Polyhedra, Polycone and Boolean.
type Solid interface {
	SolidName() string
	solid()
}

// Box is a cuboid centred at the origin. Dimensions are half-lengths in mm.
type Box struct {
	Name                string
	HalfX, HalfY, HalfZ float64
}

// Tube is a cylindrical tube or tube sector centred at the origin, spanning
// z in [-HalfZ, HalfZ]. Angles are in radians.
type Tube struct {
	Name       string
	RMin, RMax float64
	HalfZ      float64
	StartPhi   float64
	DeltaPhi   float64
}

// ZPlane is one row of a polyhedra or polycone profile.
type ZPlane struct {
	Z, RMin, RMax float64
}

// Polyhedra is a prism or frustum with a regular polygonal cross-section.
// Radii are distances from the axis to the side faces, and the first vertex
// sits at StartPhi.
type Polyhedra struct {
	Name     string
	StartPhi float64
	DeltaPhi float64
	Sides    int
	Planes   []ZPlane
}

// Polycone is a stack of conical sections given by z-planes.
type Polycone struct {
	Name     string
	StartPhi float64
	DeltaPhi float64
	Planes   []ZPlane
}

// Boolean combines two solids. Placement, when set, moves Right within the
// frame of Left before the operation is applied.
type Boolean struct {
	Name      string
	Op        Op
	Left      Solid
	Right     Solid
	Placement *geom.Transform
}

func (Box) solid()       {}
func (Tube) solid()      {}
func (Polyhedra) solid() {}
func (Polycone) solid()  {}
func (Boolean) solid()   {}

func (s Box) SolidName() string       { return s.Name }
func (s Tube) SolidName() string      { return s.Name }
func (s Polyhedra) SolidName() string { return s.Name }
func (s Polycone) SolidName() string  { return s.Name }
func (s Boolean) SolidName() string   { return s.Name }

// Op is a boolean operation.
type Op int

const (
	Union Op = iota
	Subtraction
	Intersection
)

func (o Op) String() string {
	switch o {
	case Union:
		return "union"
	case Subtraction:
		return "subtraction"
	case Intersection:
		return "intersection"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ParseOp accepts the names produced by Op.String.
func ParseOp(s string) (Op, error) {
	switch s {
	case "union":
		return Union, nil
	case "subtraction", "subtract", "difference":
		return Subtraction, nil
	case "intersection", "intersect":
		return Intersection, nil
	}
	return 0, fmt.Errorf("unknown boolean operation %q", s)
}

// MarshalYAML writes the operation by name.
func (o Op) MarshalYAML() (any, error) {
	return o.String(), nil
}

// UnmarshalYAML reads an operation name.
func (o *Op) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseOp(s)
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// NewBox returns a validated box.
func NewBox(name string, halfX, halfY, halfZ float64) (Box, error) {
	b := Box{Name: name, HalfX: halfX, HalfY: halfY, HalfZ: halfZ}
	return b, b.validate()
}

// NewTube returns a validated tube or tube sector.
func NewTube(name string, rMin, rMax, halfZ, startPhi, deltaPhi float64) (Tube, error) {
	t := Tube{Name: name, RMin: rMin, RMax: rMax, HalfZ: halfZ, StartPhi: startPhi, DeltaPhi: deltaPhi}
	return t, t.validate()
}

// NewPolyhedra returns a validated polyhedra. The planes are copied.
func NewPolyhedra(name string, startPhi, deltaPhi float64, sides int, planes []ZPlane) (Polyhedra, error) {
	p := Polyhedra{Name: name, StartPhi: startPhi, DeltaPhi: deltaPhi, Sides: sides, Planes: clonePlanes(planes)}
	return p, p.validate()
}

// NewPolycone returns a validated polycone. The planes are copied.
func NewPolycone(name string, startPhi, deltaPhi float64, planes []ZPlane) (Polycone, error) {
	p := Polycone{Name: name, StartPhi: startPhi, DeltaPhi: deltaPhi, Planes: clonePlanes(planes)}
	return p, p.validate()
}

// NewBoolean combines two existing solids. A nil operand is a composition
// error: operands must be built before the solids that use them.
func NewBoolean(name string, op Op, left, right Solid, placement *geom.Transform) (Boolean, error) {
	b := Boolean{Name: name, Op: op, Left: left, Right: right}
	if placement != nil {
		p := *placement
		b.Placement = &p
	}
	return b, b.validate()
}

// PlanesFromArrays zips parallel z, inner and outer radius arrays.
func PlanesFromArrays(z, rMin, rMax []float64) ([]ZPlane, error) {
	if len(z) != len(rMin) || len(z) != len(rMax) {
		return nil, fmt.Errorf("plane arrays differ in length: z=%d rmin=%d rmax=%d", len(z), len(rMin), len(rMax))
	}
	out := make([]ZPlane, len(z))
	for i := range z {
		out[i] = ZPlane{Z: z[i], RMin: rMin[i], RMax: rMax[i]}
	}
	return out, nil
}

func clonePlanes(p []ZPlane) []ZPlane {
	if p == nil {
		return nil
	}
	out := make([]ZPlane, len(p))
	copy(out, p)
	return out
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (s Box) validate() error {
	if s.Name == "" {
		return failure.Configuration(stage, "", "box needs a name")
	}
	for i, v := range [3]float64{s.HalfX, s.HalfY, s.HalfZ} {
		if !positive(v) {
			return failure.Configuration(stage, s.Name, "half-length %c is %g, must be positive", "xyz"[i], v)
		}
	}
	return nil
}

func (s Tube) validate() error {
	if s.Name == "" {
		return failure.Configuration(stage, "", "tube needs a name")
	}
	if !(s.RMin >= 0) || !finite(s.RMin) {
		return failure.Configuration(stage, s.Name, "inner radius %g must be non-negative", s.RMin)
	}
	if !positive(s.RMax) || s.RMax <= s.RMin {
		return failure.Configuration(stage, s.Name, "outer radius %g must exceed inner radius %g", s.RMax, s.RMin)
	}
	if !positive(s.HalfZ) {
		return failure.Configuration(stage, s.Name, "half-length z is %g, must be positive", s.HalfZ)
	}
	return validatePhi(s.Name, s.StartPhi, s.DeltaPhi)
}

func (s Polyhedra) validate() error {
	if s.Name == "" {
		return failure.Configuration(stage, "", "polyhedra needs a name")
	}
	if s.Sides < 3 {
		return failure.Configuration(stage, s.Name, "needs at least 3 sides, got %d", s.Sides)
	}
	if err := validatePhi(s.Name, s.StartPhi, s.DeltaPhi); err != nil {
		return err
	}
	return validatePlanes(s.Name, s.Planes)
}

func (s Polycone) validate() error {
	if s.Name == "" {
		return failure.Configuration(stage, "", "polycone needs a name")
	}
	if err := validatePhi(s.Name, s.StartPhi, s.DeltaPhi); err != nil {
		return err
	}
	return validatePlanes(s.Name, s.Planes)
}

func (s Boolean) validate() error {
	if s.Name == "" {
		return failure.Configuration(stage, "", "boolean solid needs a name")
	}
	switch s.Op {
	case Union, Subtraction, Intersection:
	default:
		return failure.Configuration(stage, s.Name, "unknown operation %v", s.Op)
	}
	if s.Left == nil {
		return failure.Composition("booleans", s.Name, "left operand not built")
	}
	if s.Right == nil {
		return failure.Composition("booleans", s.Name, "right operand not built")
	}
	return nil
}

func validatePhi(name string, start, delta float64) error {
	if !finite(start) {
		return failure.Configuration(stage, name, "start angle %g is not finite", start)
	}
	if !(delta > 0) || delta > units.FullCircle+1e-9 {
		return failure.Configuration(stage, name, "angular extent %g outside (0, 2pi]", delta)
	}
	return nil
}

func validatePlanes(name string, planes []ZPlane) error {
	if len(planes) < 2 {
		return failure.Configuration(stage, name, "needs at least 2 z-planes, got %d", len(planes))
	}
	var thick bool
	for i, p := range planes {
		if !finite(p.Z) || !finite(p.RMax) || !(p.RMin >= 0) {
			return failure.Configuration(stage, name, "z-plane %d has invalid values %+v", i, p)
		}
		if p.RMax < p.RMin {
			return failure.Configuration(stage, name, "z-plane %d outer radius %g below inner %g", i, p.RMax, p.RMin)
		}
		if i > 0 {
			prev := planes[i-1]
			if p.Z < prev.Z {
				return failure.Configuration(stage, name, "z-planes out of order at %d (%g < %g)", i, p.Z, prev.Z)
			}
			if p.Z > prev.Z && (p.RMax > p.RMin || prev.RMax > prev.RMin) {
				thick = true
			}
		}
	}
	if !thick {
		return failure.Configuration(stage, name, "profile encloses no volume")
	}
	return nil
}

// Validate checks s and, for booleans, every operand below it.
func Validate(s Solid) error {
	switch v := s.(type) {
	case nil:
		return failure.Composition("booleans", "", "nil solid")
	case Box:
		return v.validate()
	case Tube:
		return v.validate()
	case Polyhedra:
		return v.validate()
	case Polycone:
		return v.validate()
	case Boolean:
		if err := v.validate(); err != nil {
			return err
		}
		if err := Validate(v.Left); err != nil {
			return err
		}
		return Validate(v.Right)
	default:
		return fmt.Errorf("solid: unhandled variant %T", s)
	}
}

// Leaves returns the primitives of s in left-to-right order.
func Leaves(s Solid) []Solid {
	if b, ok := s.(Boolean); ok {
		return append(Leaves(b.Left), Leaves(b.Right)...)
	}
	if s == nil {
		return nil
	}
	return []Solid{s}
}

// Depth returns 0 for a primitive and 1 + max(operand depth) for a boolean.
func Depth(s Solid) int {
	b, ok := s.(Boolean)
	if !ok {
		return 0
	}
	return 1 + max(Depth(b.Left), Depth(b.Right))
}

// Describe renders s as an S-expression, e.g.
//
//	(subtraction "PbColl" (box "PbColl_bloc" 25 25 6.5) (tube "PbColl_hole" 0 1 7))
func Describe(s Solid) string {
	switch v := s.(type) {
	case nil:
		return "nil"
	case Box:
		return fmt.Sprintf("(box %q %g %g %g)", v.Name, v.HalfX, v.HalfY, v.HalfZ)
	case Tube:
		if v.StartPhi == 0 && v.DeltaPhi >= units.FullCircle {
			return fmt.Sprintf("(tube %q %g %g %g)", v.Name, v.RMin, v.RMax, v.HalfZ)
		}
		return fmt.Sprintf("(tube %q %g %g %g :phi %g %g)", v.Name, v.RMin, v.RMax, v.HalfZ, v.StartPhi, v.DeltaPhi)
	case Polyhedra:
		return fmt.Sprintf("(polyhedra %q %d %s)", v.Name, v.Sides, describePlanes(v.Planes))
	case Polycone:
		return fmt.Sprintf("(polycone %q %s)", v.Name, describePlanes(v.Planes))
	case Boolean:
		out := fmt.Sprintf("(%s %q %s %s", v.Op, v.Name, Describe(v.Left), Describe(v.Right))
		if v.Placement != nil {
			out += " :" + v.Placement.String()
		}
		return out + ")"
	}
	return fmt.Sprintf("(unknown %T)", s)
}

func describePlanes(planes []ZPlane) string {
	out := "("
	for i, p := range planes {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("(%g %g %g)", p.Z, p.RMin, p.RMax)
	}
	return out + ")"
}
