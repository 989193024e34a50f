// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/kernel"
	"github.com/chazu/detgeom/pkg/solid"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// defaultMeshCells controls marching cubes tessellation resolution.
const defaultMeshCells = 200

// sdfxShape wraps an sdf.SDF3 to implement kernel.Shape.
type sdfxShape struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxShape) BoundingBox() (min, max [3]float64) {
	bb := s.s.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// Contains reports whether the signed distance at p is negative.
func (s *sdfxShape) Contains(p geom.Vec3) bool {
	return s.Distance(p) < 0
}

// Distance evaluates the signed distance function at p.
func (s *sdfxShape) Distance(p geom.Vec3) float64 {
	return s.s.Evaluate(v3.Vec{X: p.X, Y: p.Y, Z: p.Z})
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cells int
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithMeshCells sets the marching cubes resolution along the longest axis.
func WithMeshCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.cells = n
		}
	}
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{cells: defaultMeshCells}
	for _, o := range opts {
		o(k)
	}
	return k
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Shape.
func unwrap(s kernel.Shape) sdf.SDF3 {
	return s.(*sdfxShape).s
}

// wrap creates a kernel.Shape from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Shape {
	return &sdfxShape{s: s}
}

// Box creates a box from half-lengths, centred on the origin.
func (k *SdfxKernel) Box(halfX, halfY, halfZ float64) (kernel.Shape, error) {
	s, err := sdf.Box3D(v3.Vec{X: 2 * halfX, Y: 2 * halfY, Z: 2 * halfZ}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Box3D: %w", err)
	}
	return wrap(s), nil
}

// Tube creates a tube or tube sector spanning z in [-halfZ, halfZ].
func (k *SdfxKernel) Tube(rMin, rMax, halfZ, startPhi, deltaPhi float64) (kernel.Shape, error) {
	planes := []solid.ZPlane{
		{Z: -halfZ, RMin: rMin, RMax: rMax},
		{Z: halfZ, RMin: rMin, RMax: rMax},
	}
	return k.revolve(planes, cylindrical, rMax, startPhi, deltaPhi)
}

// Polyhedra creates a polygonal prism or frustum. Plane radii are distances
// to the side faces.
func (k *SdfxKernel) Polyhedra(startPhi, deltaPhi float64, sides int, planes []solid.ZPlane) (kernel.Shape, error) {
	if sides < 3 {
		return nil, fmt.Errorf("polyhedra needs at least 3 sides, got %d", sides)
	}
	step := deltaPhi / float64(sides)
	cos := make([]float64, sides)
	sin := make([]float64, sides)
	for i := range cos {
		sin[i], cos[i] = math.Sincos(startPhi + (float64(i)+0.5)*step)
	}
	// Distance to the furthest side plane; its level sets are the polygon.
	metric := func(x, y float64) float64 {
		r := math.Inf(-1)
		for i := range cos {
			r = math.Max(r, x*cos[i]+y*sin[i])
		}
		return r
	}
	circum := maxRadius(planes) / math.Cos(step/2)
	return k.revolve(planes, metric, circum, startPhi, deltaPhi)
}

// Polycone creates a stack of conical sections.
func (k *SdfxKernel) Polycone(startPhi, deltaPhi float64, planes []solid.ZPlane) (kernel.Shape, error) {
	return k.revolve(planes, cylindrical, maxRadius(planes), startPhi, deltaPhi)
}

// Union returns the union of two shapes.
func (k *SdfxKernel) Union(a, b kernel.Shape) kernel.Shape {
	return wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Shape) kernel.Shape {
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

// Intersection returns the intersection of two shapes.
func (k *SdfxKernel) Intersection(a, b kernel.Shape) kernel.Shape {
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

// Transform rotates s and then translates it.
func (k *SdfxKernel) Transform(s kernel.Shape, t geom.Transform) kernel.Shape {
	tr := t.Translation
	m := sdf.Translate3d(v3.Vec{X: tr.X, Y: tr.Y, Z: tr.Z})
	if t.HasRotation() {
		x, y, z := t.Matrix().EulerXYZ()
		m = m.Mul(sdf.RotateZ(z).Mul(sdf.RotateY(y)).Mul(sdf.RotateX(x)))
	}
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// ToMesh converts a shape to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Shape) (*kernel.Mesh, error) {
	sdf3 := unwrap(s)

	renderer := render.NewMarchingCubesUniform(k.cells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		// Compute face normal.
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}

// cylindrical is the radial metric of a body of revolution.
func cylindrical(x, y float64) float64 {
	return math.Hypot(x, y)
}

func maxRadius(planes []solid.ZPlane) float64 {
	r := 0.0
	for _, p := range planes {
		r = math.Max(r, p.RMax)
	}
	return r
}

// revolve sweeps the (r, z) profile of planes around the z axis using the
// given radial metric, optionally cut to a phi sector.
func (k *SdfxKernel) revolve(
	planes []solid.ZPlane,
	metric func(x, y float64) float64,
	extent float64,
	startPhi, deltaPhi float64,
) (kernel.Shape, error) {
	if len(planes) < 2 {
		return nil, fmt.Errorf("profile needs at least 2 z-planes, got %d", len(planes))
	}
	profile, err := sdf.Polygon2D(profileVertices(planes))
	if err != nil {
		return nil, fmt.Errorf("sdfx.Polygon2D: %w", err)
	}

	zMin, zMax := planes[0].Z, planes[len(planes)-1].Z
	r := &revolved{
		profile: profile,
		metric:  metric,
		bb: sdf.Box3{
			Min: v3.Vec{X: -extent, Y: -extent, Z: zMin},
			Max: v3.Vec{X: extent, Y: extent, Z: zMax},
		},
	}
	if deltaPhi < 2*math.Pi-1e-9 {
		r.sector = newSector(startPhi, deltaPhi)
	}
	return wrap(r), nil
}

// profileVertices traces the outer radii upwards and the inner radii back
// down. A zero inner radius is pushed past the axis so the axis itself is
// interior rather than a surface.
func profileVertices(planes []solid.ZPlane) []v2.Vec {
	axis := -maxRadius(planes) - 1
	verts := make([]v2.Vec, 0, 2*len(planes))
	add := func(r, z float64) {
		v := v2.Vec{X: r, Y: z}
		if n := len(verts); n > 0 && verts[n-1] == v {
			return
		}
		verts = append(verts, v)
	}
	for _, p := range planes {
		add(p.RMax, p.Z)
	}
	for i := len(planes) - 1; i >= 0; i-- {
		r := planes[i].RMin
		if r <= 0 {
			r = axis
		}
		add(r, planes[i].Z)
	}
	return verts
}

// revolved is an SDF3 for profiles swept about z.
type revolved struct {
	profile sdf.SDF2
	metric  func(x, y float64) float64
	sector  *sector
	bb      sdf.Box3
}

// Evaluate returns the (approximate) signed distance to the surface.
func (r *revolved) Evaluate(p v3.Vec) float64 {
	d := r.profile.Evaluate(v2.Vec{X: r.metric(p.X, p.Y), Y: p.Z})
	if r.sector != nil {
		d = math.Max(d, r.sector.distance(p.X, p.Y))
	}
	return d
}

// BoundingBox returns the bounding box of the full revolution.
func (r *revolved) BoundingBox() sdf.Box3 {
	return r.bb
}

// sector is the region between two half-planes through the z axis,
// counter-clockwise from start.
type sector struct {
	n1, n2 v2.Vec // outward normals of the start and end boundaries
	convex bool
}

func newSector(start, delta float64) *sector {
	s0, c0 := math.Sincos(start)
	s1, c1 := math.Sincos(start + delta)
	return &sector{
		n1:     v2.Vec{X: s0, Y: -c0},
		n2:     v2.Vec{X: -s1, Y: c1},
		convex: delta <= math.Pi,
	}
}

func (s *sector) distance(x, y float64) float64 {
	d1 := s.n1.X*x + s.n1.Y*y
	d2 := s.n2.X*x + s.n2.Y*y
	if s.convex {
		return math.Max(d1, d2)
	}
	return math.Min(d1, d2)
}
