// Package kernel defines the abstract geometry kernel interface.
// Implementations turn solid descriptions into evaluable shapes that answer
// point membership and bounding-box queries and can be tessellated. The
// kernel abstraction keeps the solid descriptions independent of any one
// CSG backend.
package kernel

import (
	"fmt"

	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/solid"
)

// Shape is an opaque handle to a kernel solid.
// Implementations wrap their internal representation.
type Shape interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
	// Contains reports whether p lies strictly inside the shape.
	Contains(p geom.Vec3) bool
	// Distance estimates the signed distance from p to the surface,
	// negative inside.
	Distance(p geom.Vec3) float64
}

// Kernel is the abstract geometry kernel interface. All primitives are
// centred on the origin of their own frame, lengths in mm, angles in rad.
type Kernel interface {
	// Primitives
	Box(halfX, halfY, halfZ float64) (Shape, error)
	Tube(rMin, rMax, halfZ, startPhi, deltaPhi float64) (Shape, error)
	Polyhedra(startPhi, deltaPhi float64, sides int, planes []solid.ZPlane) (Shape, error)
	Polycone(startPhi, deltaPhi float64, planes []solid.ZPlane) (Shape, error)

	// Boolean operations
	Union(a, b Shape) Shape
	Difference(a, b Shape) Shape
	Intersection(a, b Shape) Shape

	// Transform applies a rigid placement to s.
	Transform(s Shape, t geom.Transform) Shape

	// Mesh output
	ToMesh(s Shape) (*Mesh, error)
}

// Realize builds the kernel shape for a solid description. Boolean trees
// are realized bottom-up with operand order preserved.
func Realize(k Kernel, s solid.Solid) (Shape, error) {
	switch v := s.(type) {
	case solid.Box:
		return k.Box(v.HalfX, v.HalfY, v.HalfZ)
	case solid.Tube:
		return k.Tube(v.RMin, v.RMax, v.HalfZ, v.StartPhi, v.DeltaPhi)
	case solid.Polyhedra:
		return k.Polyhedra(v.StartPhi, v.DeltaPhi, v.Sides, v.Planes)
	case solid.Polycone:
		return k.Polycone(v.StartPhi, v.DeltaPhi, v.Planes)
	case solid.Boolean:
		left, err := Realize(k, v.Left)
		if err != nil {
			return nil, fmt.Errorf("%s: left operand: %w", v.Name, err)
		}
		right, err := Realize(k, v.Right)
		if err != nil {
			return nil, fmt.Errorf("%s: right operand: %w", v.Name, err)
		}
		if v.Placement != nil {
			right = k.Transform(right, *v.Placement)
		}
		switch v.Op {
		case solid.Union:
			return k.Union(left, right), nil
		case solid.Subtraction:
			return k.Difference(left, right), nil
		case solid.Intersection:
			return k.Intersection(left, right), nil
		}
		return nil, fmt.Errorf("%s: unsupported operation %v", v.Name, v.Op)
	case nil:
		return nil, fmt.Errorf("realize: nil solid")
	}
	return nil, fmt.Errorf("realize: unsupported solid %T", s)
}
