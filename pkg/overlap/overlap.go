// Package overlap probes a volume tree for placement mistakes. For every
// placement that asks for it, random points inside the daughter are tested
// against the mother (extrusion) and against the other daughters of the
// same mother (intersection).
//
// The probe is advisory. It samples, so a clean report is evidence rather
// than proof, and it never changes the tree.
package overlap

import (
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/kernel"
	"github.com/chazu/detgeom/pkg/volume"
)

// Defaults.
const (
	DefaultSamples   = 10000
	DefaultTolerance = 1e-3 // mm
	DefaultSeed      = 1
)

// Kind tells how a daughter misbehaves.
type Kind int

const (
	// Extrusion: part of the daughter lies outside its mother.
	Extrusion Kind = iota
	// Intersection: the daughter shares space with a sibling.
	Intersection
)

func (k Kind) String() string {
	switch k {
	case Extrusion:
		return "extrusion"
	case Intersection:
		return "intersection"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Overlap is one offending pair, reported at its deepest sampled point.
type Overlap struct {
	Kind   Kind
	Mother string
	Volume string
	CopyNo int
	Other  string    // the sibling; empty for an extrusion
	Point  geom.Vec3 // in the mother's frame
	Depth  float64   // how far Point lies inside the offending region, mm
}

func (o Overlap) String() string {
	if o.Kind == Extrusion {
		return fmt.Sprintf("%s:%d extrudes from %s by %.4g mm at %s", o.Volume, o.CopyNo, o.Mother, o.Depth, o.Point)
	}
	return fmt.Sprintf("%s:%d overlaps %s in %s by %.4g mm at %s", o.Volume, o.CopyNo, o.Other, o.Mother, o.Depth, o.Point)
}

// Checker samples placements for overlaps.
type Checker struct {
	k         kernel.Kernel
	samples   int
	tolerance float64
	seed      uint64
	log       *logrus.Entry
}

// Option configures a Checker.
type Option func(*Checker)

// WithSamples sets the number of points drawn per placement.
func WithSamples(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.samples = n
		}
	}
}

// WithTolerance sets how deep a point must lie before it counts.
func WithTolerance(tol float64) Option {
	return func(c *Checker) {
		if tol >= 0 {
			c.tolerance = tol
		}
	}
}

// WithSeed fixes the sampling sequence.
func WithSeed(seed uint64) Option {
	return func(c *Checker) { c.seed = seed }
}

// WithLogger sets the entry overlaps are reported to.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Checker) {
		if log != nil {
			c.log = log
		}
	}
}

// New returns a Checker that realizes solids with k.
func New(k kernel.Kernel, opts ...Option) *Checker {
	c := &Checker{
		k:         k,
		samples:   DefaultSamples,
		tolerance: DefaultTolerance,
		seed:      DefaultSeed,
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Check probes every mother under root. Placements whose overlap flag is
// off are neither sampled nor used as siblings of a sampled daughter.
// The result is ordered by walk order, then by sibling order.
func (c *Checker) Check(root *volume.Volume) ([]Overlap, error) {
	shapes := make(map[*volume.Volume]kernel.Shape)
	local := func(v *volume.Volume) (kernel.Shape, error) {
		if s, ok := shapes[v]; ok {
			return s, nil
		}
		s, err := kernel.Realize(c.k, v.Solid())
		if err != nil {
			return nil, fmt.Errorf("overlap: volume %q: %w", v.Name(), err)
		}
		shapes[v] = s
		return s, nil
	}

	var found []Overlap
	err := volume.Walk(root, func(m *volume.Volume, _ geom.Transform, _ int) error {
		placements := m.Placements()
		if len(placements) == 0 {
			return nil
		}
		mother, err := local(m)
		if err != nil {
			return err
		}
		daughters := make([]kernel.Shape, len(placements))
		for i, p := range placements {
			s, err := local(p.Child())
			if err != nil {
				return err
			}
			daughters[i] = c.k.Transform(s, p.Transform())
		}
		for i, p := range placements {
			if !p.CheckOverlaps() {
				continue
			}
			found = append(found, c.probe(m, mother, placements, daughters, i)...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, o := range found {
		c.log.WithFields(logrus.Fields{
			"kind":   o.Kind.String(),
			"mother": o.Mother,
			"volume": o.Volume,
			"other":  o.Other,
		}).Warn(o.String())
	}
	return found, nil
}

// probe samples daughter i of mother m.
func (c *Checker) probe(m *volume.Volume, mother kernel.Shape, placements []*volume.Placement, daughters []kernel.Shape, i int) []Overlap {
	self := placements[i]
	shape := daughters[i]
	rng := rand.New(rand.NewPCG(c.seed, uint64(i)))
	lo, hi := shape.BoundingBox()

	// Index 0 is the mother, j+1 is sibling j.
	worst := make([]*Overlap, len(placements)+1)
	record := func(slot int, o Overlap) {
		if worst[slot] == nil || o.Depth > worst[slot].Depth {
			worst[slot] = &o
		}
	}

	for n := 0; n < c.samples; n++ {
		pt := geom.Vec3{
			X: lo[0] + rng.Float64()*(hi[0]-lo[0]),
			Y: lo[1] + rng.Float64()*(hi[1]-lo[1]),
			Z: lo[2] + rng.Float64()*(hi[2]-lo[2]),
		}
		inside := -shape.Distance(pt)
		if inside <= c.tolerance {
			continue
		}
		if out := mother.Distance(pt); out > c.tolerance {
			record(0, Overlap{
				Kind:   Extrusion,
				Mother: m.Name(),
				Volume: self.Name(),
				CopyNo: self.CopyNo(),
				Point:  pt,
				Depth:  min(out, inside),
			})
		}
		for j, other := range daughters {
			if j == i || !placements[j].CheckOverlaps() {
				continue
			}
			if in := -other.Distance(pt); in > c.tolerance {
				record(j+1, Overlap{
					Kind:   Intersection,
					Mother: m.Name(),
					Volume: self.Name(),
					CopyNo: self.CopyNo(),
					Other:  placements[j].Name(),
					Point:  pt,
					Depth:  min(in, inside),
				})
			}
		}
	}

	var out []Overlap
	for _, o := range worst {
		if o != nil {
			out = append(out, *o)
		}
	}
	return out
}
