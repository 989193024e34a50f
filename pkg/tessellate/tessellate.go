// Package tessellate walks a volume tree and produces triangle meshes
// using a geometry kernel. One mesh is produced per visible volume, placed
// in the frame of the walk's root.
package tessellate

import (
	"fmt"

	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/kernel"
	"github.com/chazu/detgeom/pkg/vis"
	"github.com/chazu/detgeom/pkg/volume"
)

// DefaultStyle is used for volumes that carry no display style.
var DefaultStyle = vis.Solid(vis.Grey)

// Tessellate walks the tree under root and meshes every visible volume
// with the provided kernel. A volume's mesh covers its whole solid, so
// daughters are drawn on top of their mother. The tree is never mutated.
func Tessellate(root *volume.Volume, k kernel.Kernel) ([]*kernel.Mesh, error) {
	if root == nil {
		return nil, nil
	}

	var meshes []*kernel.Mesh
	err := volume.Walk(root, func(v *volume.Volume, global geom.Transform, _ int) error {
		style, ok := v.Style()
		if !ok {
			style = DefaultStyle
		}
		if !style.Visible {
			return nil
		}

		mesh, err := meshVolume(k, v, global)
		if err != nil {
			return fmt.Errorf("tessellate: volume %q: %w", v.Name(), err)
		}
		paint(mesh, v, style)
		meshes = append(meshes, mesh)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meshes, nil
}

// meshVolume realizes v's solid and moves it into the root frame.
func meshVolume(k kernel.Kernel, v *volume.Volume, global geom.Transform) (*kernel.Mesh, error) {
	shape, err := kernel.Realize(k, v.Solid())
	if err != nil {
		return nil, err
	}
	if global.HasRotation() || !global.Translation.IsZero() {
		shape = k.Transform(shape, global)
	}
	mesh, err := k.ToMesh(shape)
	if err != nil {
		return nil, fmt.Errorf("ToMesh failed: %w", err)
	}
	return mesh, nil
}

// paint copies the volume's identity and style onto its mesh.
func paint(m *kernel.Mesh, v *volume.Volume, style vis.Style) {
	m.PartName = v.Name()
	if mat := v.Material(); mat != nil {
		m.Material = mat.Name()
	}
	c := style.Color
	m.Color = [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
	m.Solid = style.ForceSolid
}
