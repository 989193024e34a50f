package kernel

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/solid"
)

// --- Mesh helper method tests ---

func TestMeshVertexCount(t *testing.T) {
	tests := []struct {
		name     string
		vertices []float32
		want     int
	}{
		{"empty", nil, 0},
		{"one vertex", []float32{1, 2, 3}, 1},
		{"four vertices", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshTriangleCount(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		want    int
	}{
		{"empty", nil, 0},
		{"one triangle", []uint32{0, 1, 2}, 1},
		{"two triangles", []uint32{0, 1, 2, 2, 3, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Indices: tt.indices}
			if got := m.TriangleCount(); got != tt.want {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshBounds(t *testing.T) {
	m := &Mesh{Vertices: []float32{-1, 2, 3, 4, -5, 6, 0, 0, -7}}
	min, max := m.Bounds()
	if min != [3]float64{-1, -5, -7} {
		t.Errorf("min = %v", min)
	}
	if max != [3]float64{4, 2, 6} {
		t.Errorf("max = %v", max)
	}

	min, _ = (&Mesh{}).Bounds()
	if !math.IsInf(min[0], 1) {
		t.Errorf("empty mesh min = %v, want +Inf", min)
	}
}

// --- Realize against a recording kernel ---

// exprShape records the kernel calls that produced it.
type exprShape struct {
	expr string
}

func (s *exprShape) BoundingBox() (min, max [3]float64) { return }
func (s *exprShape) Contains(geom.Vec3) bool            { return false }
func (s *exprShape) Distance(geom.Vec3) float64         { return 0 }

// exprKernel builds shapes whose expr is the call tree.
type exprKernel struct{}

func (exprKernel) Box(x, y, z float64) (Shape, error) {
	return &exprShape{expr: "box"}, nil
}
func (exprKernel) Tube(_, _, _, _, _ float64) (Shape, error) {
	return &exprShape{expr: "tube"}, nil
}
func (exprKernel) Polyhedra(_, _ float64, sides int, _ []solid.ZPlane) (Shape, error) {
	return &exprShape{expr: "polyhedra"}, nil
}
func (exprKernel) Polycone(_, _ float64, _ []solid.ZPlane) (Shape, error) {
	return &exprShape{expr: "polycone"}, nil
}
func (exprKernel) Union(a, b Shape) Shape        { return bin("U", a, b) }
func (exprKernel) Difference(a, b Shape) Shape   { return bin("D", a, b) }
func (exprKernel) Intersection(a, b Shape) Shape { return bin("I", a, b) }
func (exprKernel) Transform(s Shape, t geom.Transform) Shape {
	return &exprShape{expr: "T(" + s.(*exprShape).expr + ")"}
}
func (exprKernel) ToMesh(Shape) (*Mesh, error) { return &Mesh{}, nil }

func bin(op string, a, b Shape) Shape {
	return &exprShape{expr: op + "(" + a.(*exprShape).expr + "," + b.(*exprShape).expr + ")"}
}

// Compile-time check that the recording kernel implements the interface.
var _ Kernel = exprKernel{}

func TestRealizePreservesStructure(t *testing.T) {
	out, _ := solid.NewBox("out", 100, 75, 325)
	in, _ := solid.NewBox("in", 50, 25, 275)
	hole, _ := solid.NewTube("hole", 0, 1.5, 26, 0, 2*math.Pi)
	hex, _ := solid.NewPolyhedra("hex", 0, 2*math.Pi, 6, []solid.ZPlane{{Z: 0, RMax: 14.25}, {Z: 40, RMax: 14.25}})
	cone, _ := solid.NewPolycone("cone", 0, 2*math.Pi, []solid.ZPlane{{Z: 0, RMax: 11.5}, {Z: 40, RMax: 16.12}})

	nohole, _ := solid.NewBoolean("nohole", solid.Subtraction, out, in, nil)
	pl := geom.Translate(0, -8, 300)
	cave, _ := solid.NewBoolean("cave", solid.Subtraction, nohole, hole, &pl)
	bgo, _ := solid.NewBoolean("bgo", solid.Intersection, hex, cone, nil)
	both, _ := solid.NewBoolean("both", solid.Union, cave, bgo, nil)

	tests := []struct {
		name string
		s    solid.Solid
		want string
	}{
		{"primitive", out, "box"},
		{"subtraction keeps order", nohole, "D(box,box)"},
		{"placed right operand", cave, "D(D(box,box),T(tube))"},
		{"intersection", bgo, "I(polyhedra,polycone)"},
		{"nested union", both, "U(D(D(box,box),T(tube)),I(polyhedra,polycone))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Realize(exprKernel{}, tt.s)
			if err != nil {
				t.Fatalf("Realize() error = %v", err)
			}
			if e := got.(*exprShape).expr; e != tt.want {
				t.Errorf("Realize() = %s, want %s", e, tt.want)
			}
		})
	}
}

func TestRealizeRejectsNil(t *testing.T) {
	_, err := Realize(exprKernel{}, nil)
	if err == nil {
		t.Fatal("expected error for nil solid")
	}

	box, _ := solid.NewBox("box", 1, 1, 1)
	broken := solid.Boolean{Name: "broken", Op: solid.Union, Left: box}
	_, err = Realize(exprKernel{}, broken)
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected error naming the boolean, got %v", err)
	}
}
