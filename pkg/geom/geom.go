// Package geom provides the small amount of linear algebra the geometry
// pipeline needs: vectors, rotation matrices and rigid transforms.
package geom

import (
	"fmt"
	"math"
)

// Vec3 represents a point or displacement in mm.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// IsZero reports whether all components are exactly zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// ApproxEqual reports whether v and o differ by at most tol per component.
func (v Vec3) ApproxEqual(o Vec3, tol float64) bool {
	return math.Abs(v.X-o.X) <= tol && math.Abs(v.Y-o.Y) <= tol && math.Abs(v.Z-o.Z) <= tol
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// Mat3 is a row-major 3x3 matrix. Only orthonormal rotations are built
// by this package.
type Mat3 [3][3]float64

// Identity returns the identity rotation.
func Identity() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// RotateX returns a right-handed rotation by a radians about the X axis.
func RotateX(a float64) Mat3 {
	s, c := math.Sincos(a)
	return Mat3{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

// RotateY returns a right-handed rotation by a radians about the Y axis.
func RotateY(a float64) Mat3 {
	s, c := math.Sincos(a)
	return Mat3{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

// RotateZ returns a right-handed rotation by a radians about the Z axis.
func RotateZ(a float64) Mat3 {
	s, c := math.Sincos(a)
	return Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

// RotateXYZ applies X, then Y, then Z rotations (R = Rz·Ry·Rx).
func RotateXYZ(x, y, z float64) Mat3 {
	return RotateZ(z).Mul(RotateY(y)).Mul(RotateX(x))
}

// Mul returns m·o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return r
}

// Apply returns m·v.
func (m Mat3) Apply(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Transpose returns the transpose, which is the inverse of a rotation.
func (m Mat3) Transpose() Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[j][i]
		}
	}
	return r
}

// IsIdentity reports whether m is the identity within 1e-12.
func (m Mat3) IsIdentity() bool {
	id := Identity()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(m[i][j]-id[i][j]) > 1e-12 {
				return false
			}
		}
	}
	return true
}

// EulerXYZ decomposes m into the angles accepted by RotateXYZ.
func (m Mat3) EulerXYZ() (x, y, z float64) {
	sy := -m[2][0]
	if sy >= 1 {
		return math.Atan2(m[0][1], m[1][1]), math.Pi / 2, 0
	}
	if sy <= -1 {
		return math.Atan2(-m[0][1], m[1][1]), -math.Pi / 2, 0
	}
	return math.Atan2(m[2][1], m[2][2]), math.Asin(sy), math.Atan2(m[1][0], m[0][0])
}

// Transform is a rigid placement: p' = Rotation·p + Translation.
// A nil Rotation means identity.
type Transform struct {
	Translation Vec3  `json:"translation" yaml:"translation"`
	Rotation    *Mat3 `json:"rotation,omitempty" yaml:"rotation,omitempty"`
}

// Translate returns a pure translation.
func Translate(x, y, z float64) Transform {
	return Transform{Translation: Vec3{X: x, Y: y, Z: z}}
}

// WithRotation returns a copy of t with rotation r.
func (t Transform) WithRotation(r Mat3) Transform {
	t.Rotation = &r
	return t
}

// Matrix returns the rotation part, identity when unset.
func (t Transform) Matrix() Mat3 {
	if t.Rotation == nil {
		return Identity()
	}
	return *t.Rotation
}

// HasRotation reports whether the rotation part is not the identity.
func (t Transform) HasRotation() bool {
	return t.Rotation != nil && !t.Rotation.IsIdentity()
}

// Apply maps a point from the local frame into the parent frame.
func (t Transform) Apply(p Vec3) Vec3 {
	return t.Matrix().Apply(p).Add(t.Translation)
}

// Compose returns the transform equivalent to applying o first, then t.
func (t Transform) Compose(o Transform) Transform {
	if t.Rotation == nil && o.Rotation == nil {
		return Transform{Translation: t.Translation.Add(o.Translation)}
	}
	r := t.Matrix()
	return Transform{
		Translation: r.Apply(o.Translation).Add(t.Translation),
	}.WithRotation(r.Mul(o.Matrix()))
}

// Inverse returns the transform mapping parent coordinates back to local.
func (t Transform) Inverse() Transform {
	if t.Rotation == nil {
		return Transform{Translation: t.Translation.Scale(-1)}
	}
	rt := t.Rotation.Transpose()
	return Transform{Translation: rt.Apply(t.Translation).Scale(-1)}.WithRotation(rt)
}

func (t Transform) String() string {
	if !t.HasRotation() {
		return "at " + t.Translation.String()
	}
	x, y, z := t.Matrix().EulerXYZ()
	return fmt.Sprintf("at %s rot (%g, %g, %g) rad", t.Translation, x, y, z)
}
