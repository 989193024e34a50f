package kernel

import "math"

// Mesh is a triangle mesh for one volume, in world coordinates.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32  `json:"vertices"`
	Normals  []float32  `json:"normals"`
	Indices  []uint32   `json:"indices"`
	PartName string     `json:"partName"`           // volume name
	Material string     `json:"material,omitempty"` // material name
	Color    [4]float32 `json:"color"`              // RGBA in [0,1]
	Solid    bool       `json:"solid"`              // filled rather than wireframe
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Bounds returns the axis-aligned extent of the vertices. An empty mesh
// yields +Inf/-Inf bounds.
func (m *Mesh) Bounds() (min, max [3]float64) {
	for i := 0; i < 3; i++ {
		min[i], max[i] = math.Inf(1), math.Inf(-1)
	}
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		for j := 0; j < 3; j++ {
			v := float64(m.Vertices[i+j])
			min[j] = math.Min(min[j], v)
			max[j] = math.Max(max[j], v)
		}
	}
	return min, max
}
