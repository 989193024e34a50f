// Package material resolves named elements and materials and builds
// composite materials from element mass fractions.
//
// A Catalog is caller-owned state. Repeated lookups of the same name return
// the same pointer, so volumes built from the catalog share bindings instead
// of copying them.
package material

import (
	_ "embed"
	"fmt"
	"math"
	"sort"

	"github.com/chazu/detgeom/pkg/failure"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// FractionTolerance bounds |sum(fractions) - 1| for a composite.
const FractionTolerance = 1e-6

const stage = "materials"

//go:embed nist.yaml
var nistTable []byte

// Element is a chemical element with atomic number and molar mass (g/mole).
type Element struct {
	symbol string
	z      int
	a      float64
}

// Symbol returns the chemical symbol, e.g. "Si".
func (e *Element) Symbol() string { return e.symbol }

// Z returns the atomic number.
func (e *Element) Z() int { return e.z }

// A returns the molar mass in g/mole.
func (e *Element) A() float64 { return e.a }

func (e *Element) String() string {
	return fmt.Sprintf("%s(Z=%d, A=%g)", e.symbol, e.z, e.a)
}

// Component is one element entry of a material.
type Component struct {
	Element  *Element
	Fraction float64 // mass fraction
}

// Material is an immutable named substance.
type Material struct {
	name       string
	density    float64 // g/cm3
	components []Component
}

// Name returns the catalog name.
func (m *Material) Name() string { return m.name }

// Density returns the density in g/cm3.
func (m *Material) Density() float64 { return m.density }

// NumElements returns the number of components.
func (m *Material) NumElements() int { return len(m.components) }

// Components returns a copy of the element list in definition order.
func (m *Material) Components() []Component {
	out := make([]Component, len(m.components))
	copy(out, m.components)
	return out
}

// FractionSum returns the sum of the mass fractions.
func (m *Material) FractionSum() float64 {
	fr := make([]float64, len(m.components))
	for i, c := range m.components {
		fr[i] = c.Fraction
	}
	return floats.Sum(fr)
}

func (m *Material) String() string {
	return fmt.Sprintf("%s (%g g/cm3, %d elements)", m.name, m.density, len(m.components))
}

// Fraction names an element by symbol with its mass fraction. It is the
// input form for DefineComposite.
type Fraction struct {
	Element  string  `yaml:"element" json:"element"`
	Fraction float64 `yaml:"fraction" json:"fraction"`
}

type elementEntry struct {
	Z int     `yaml:"z"`
	A float64 `yaml:"a"`
}

type materialEntry struct {
	Density    float64    `yaml:"density"`
	Components []Fraction `yaml:"components"`
}

type table struct {
	Elements  map[string]elementEntry  `yaml:"elements"`
	Materials map[string]materialEntry `yaml:"materials"`
}

// Catalog is a registry of built elements and materials. It is not safe for
// concurrent use.
type Catalog struct {
	table     table
	elements  map[string]*Element
	materials map[string]*Material
}

// NewCatalog returns a catalog backed by the embedded NIST subset. Nothing
// is built until it is first requested.
func NewCatalog() (*Catalog, error) {
	var t table
	if err := yaml.Unmarshal(nistTable, &t); err != nil {
		return nil, fmt.Errorf("material: parsing embedded table: %w", err)
	}
	return &Catalog{
		table:     t,
		elements:  make(map[string]*Element),
		materials: make(map[string]*Material),
	}, nil
}

// FindOrBuildElement returns the element with the given chemical symbol.
func (c *Catalog) FindOrBuildElement(symbol string) (*Element, error) {
	if e, ok := c.elements[symbol]; ok {
		return e, nil
	}
	entry, ok := c.table.Elements[symbol]
	if !ok {
		return nil, failure.Configuration(stage, symbol, "unknown element")
	}
	e := &Element{symbol: symbol, z: entry.Z, a: entry.A}
	c.elements[symbol] = e
	return e, nil
}

// FindOrBuildMaterial returns the material with the given name, building it
// from the predefined table on first use. Composites defined earlier with
// DefineComposite are found too.
func (c *Catalog) FindOrBuildMaterial(name string) (*Material, error) {
	if m, ok := c.materials[name]; ok {
		return m, nil
	}
	entry, ok := c.table.Materials[name]
	if !ok {
		return nil, failure.Configuration(stage, name, "unknown material")
	}
	m, err := c.build(name, entry.Density, entry.Components)
	if err != nil {
		return nil, err
	}
	c.materials[name] = m
	return m, nil
}

// DefineComposite builds a material from element mass fractions.
//
// Defining a name a second time with the same density and components
// returns the existing material. Any other redefinition fails, as does a
// name that clashes with a differing predefined material.
func (c *Catalog) DefineComposite(name string, density float64, fractions []Fraction) (*Material, error) {
	if name == "" {
		return nil, failure.Configuration(stage, "", "composite material needs a name")
	}
	m, err := c.build(name, density, fractions)
	if err != nil {
		return nil, err
	}

	existing, ok := c.materials[name]
	if !ok {
		if _, predefined := c.table.Materials[name]; predefined {
			if existing, err = c.FindOrBuildMaterial(name); err != nil {
				return nil, err
			}
			ok = true
		}
	}
	if ok {
		if !sameDefinition(existing, m) {
			return nil, failure.Configuration(stage, name, "redefined with a different composition")
		}
		return existing, nil
	}

	c.materials[name] = m
	return m, nil
}

// Lookup returns an already built material without building anything.
func (c *Catalog) Lookup(name string) (*Material, bool) {
	m, ok := c.materials[name]
	return m, ok
}

// Names returns the names of all built materials, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.materials))
	for n := range c.materials {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Predefined returns the names the catalog can build on demand, sorted.
func (c *Catalog) Predefined() []string {
	names := make([]string, 0, len(c.table.Materials))
	for n := range c.table.Materials {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) build(name string, density float64, fractions []Fraction) (*Material, error) {
	if !(density > 0) || math.IsInf(density, 0) {
		return nil, failure.Configuration(stage, name, "density %g must be positive", density)
	}
	if len(fractions) == 0 {
		return nil, failure.Configuration(stage, name, "no components")
	}

	comps := make([]Component, 0, len(fractions))
	fr := make([]float64, 0, len(fractions))
	for _, f := range fractions {
		if !(f.Fraction > 0) || f.Fraction > 1 {
			return nil, failure.Configuration(stage, name, "fraction %g of %s outside (0, 1]", f.Fraction, f.Element)
		}
		e, err := c.FindOrBuildElement(f.Element)
		if err != nil {
			return nil, failure.Configuration(stage, name, "component %q: unknown element", f.Element)
		}
		comps = append(comps, Component{Element: e, Fraction: f.Fraction})
		fr = append(fr, f.Fraction)
	}

	if sum := floats.Sum(fr); math.Abs(sum-1) > FractionTolerance {
		return nil, failure.Configuration(stage, name, "mass fractions sum to %g, want 1", sum)
	}
	return &Material{name: name, density: density, components: comps}, nil
}

func sameDefinition(a, b *Material) bool {
	if math.Abs(a.density-b.density) > 1e-12*math.Max(a.density, b.density) {
		return false
	}
	if len(a.components) != len(b.components) {
		return false
	}
	for i := range a.components {
		if a.components[i].Element != b.components[i].Element {
			return false
		}
		if math.Abs(a.components[i].Fraction-b.components[i].Fraction) > FractionTolerance {
			return false
		}
	}
	return true
}
