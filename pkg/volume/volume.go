// Package volume assembles solids and materials into a tree of placed
// logical volumes.
//
// A volume is placed at most once and never inside its own subtree, so the
// placements always form a tree. The same solid may back any number of
// volumes. Apart from the sensitive detector and the display style, which
// may each be set once after construction, a volume does not change once it
// has been placed.
package volume

import (
	"errors"
	"fmt"

	"github.com/chazu/detgeom/pkg/failure"
	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/material"
	"github.com/chazu/detgeom/pkg/sensitive"
	"github.com/chazu/detgeom/pkg/solid"
	"github.com/chazu/detgeom/pkg/vis"
)

// Volume is a solid filled with a material, plus its daughters.
type Volume struct {
	name       string
	solid      solid.Solid
	material   *material.Material
	placements []*Placement
	placedBy   *Placement

	sensitive *sensitive.Detector
	style     *vis.Style
}

// Placement positions a daughter volume inside its mother's frame.
type Placement struct {
	mother        *Volume
	child         *Volume
	transform     geom.Transform
	copyNo        int
	checkOverlaps bool
}

// Name returns the name of the placed volume.
func (p *Placement) Name() string { return p.child.name }

// Mother returns the volume the child is placed in.
func (p *Placement) Mother() *Volume { return p.mother }

// Child returns the placed volume.
func (p *Placement) Child() *Volume { return p.child }

// Transform returns the child's position and rotation in the mother frame.
func (p *Placement) Transform() geom.Transform { return p.transform }

// CopyNo returns the copy number the engine reports for hits in this
// placement.
func (p *Placement) CopyNo() int { return p.copyNo }

// CheckOverlaps reports whether the consuming engine should test this
// placement for overlaps with its mother and sisters.
func (p *Placement) CheckOverlaps() bool { return p.checkOverlaps }

func (p *Placement) String() string {
	return fmt.Sprintf("%s in %s %s copy %d", p.child.name, p.mother.name, p.transform, p.copyNo)
}

// New returns an unplaced volume.
func New(name string, s solid.Solid, m *material.Material) (*Volume, error) {
	if name == "" {
		return nil, failure.Configuration("volumes", "", "volume needs a name")
	}
	if s == nil {
		return nil, failure.Composition("volumes", name, "solid not built")
	}
	if m == nil {
		return nil, failure.Configuration("volumes", name, "no material")
	}
	return &Volume{name: name, solid: s, material: m}, nil
}

// Name returns the volume's unique name.
func (v *Volume) Name() string { return v.name }

// Solid returns the shape, which other volumes may share.
func (v *Volume) Solid() solid.Solid { return v.solid }

// Material returns the shared catalog material.
func (v *Volume) Material() *material.Material { return v.material }

// Mother returns the volume v is placed in, or nil.
func (v *Volume) Mother() *Volume {
	if v.placedBy == nil {
		return nil
	}
	return v.placedBy.mother
}

// PlacedBy returns the placement positioning v, or nil for a root.
func (v *Volume) PlacedBy() *Placement { return v.placedBy }

// Placements returns the daughters of v in placement order.
func (v *Volume) Placements() []*Placement {
	out := make([]*Placement, len(v.placements))
	copy(out, v.placements)
	return out
}

// Sensitive returns the attached detector, or nil.
func (v *Volume) Sensitive() *sensitive.Detector { return v.sensitive }

// Style returns the display style and whether one was set.
func (v *Volume) Style() (vis.Style, bool) {
	if v.style == nil {
		return vis.Style{}, false
	}
	return *v.style, true
}

func (v *Volume) String() string {
	return fmt.Sprintf("%s (%s, %s)", v.name, v.solid.SolidName(), v.material.Name())
}

// Place positions child inside v. A child already placed elsewhere, or one
// that contains v, is rejected.
func (v *Volume) Place(child *Volume, t geom.Transform, copyNo int, checkOverlaps bool) (*Placement, error) {
	if child == nil {
		return nil, failure.Composition("placements", v.name, "daughter volume not built")
	}
	if child.placedBy != nil {
		return nil, failure.Composition("placements", child.name, "already placed in %q", child.placedBy.mother.name)
	}
	for a := v; a != nil; a = a.Mother() {
		if a == child {
			return nil, failure.Composition("placements", child.name, "cannot be placed inside its own subtree (%q)", v.name)
		}
	}
	if t.Rotation != nil {
		r := *t.Rotation
		t.Rotation = &r
	}

	p := &Placement{mother: v, child: child, transform: t, copyNo: copyNo, checkOverlaps: checkOverlaps}
	v.placements = append(v.placements, p)
	child.placedBy = p
	return p, nil
}

// SetSensitive attaches a detector. It may be called once.
func (v *Volume) SetSensitive(d *sensitive.Detector) error {
	if d == nil {
		return failure.Configuration("sensitive", v.name, "nil detector")
	}
	if v.sensitive != nil {
		return failure.Configuration("sensitive", v.name, "already bound to %q", v.sensitive.Name())
	}
	v.sensitive = d
	return nil
}

// SetStyle attaches a display style. It may be called once.
func (v *Volume) SetStyle(s vis.Style) error {
	if v.style != nil {
		return failure.Configuration("vis", v.name, "style already set")
	}
	v.style = &s
	return nil
}

// SkipChildren may be returned by a WalkFunc to skip a volume's daughters.
var SkipChildren = errors.New("skip children")

// WalkFunc is called for each volume with its transform relative to the
// walk's root and its depth (0 for the root).
type WalkFunc func(v *Volume, global geom.Transform, depth int) error

// Walk visits root and its descendants depth-first in placement order.
func Walk(root *Volume, fn WalkFunc) error {
	if root == nil {
		return nil
	}
	return walk(root, geom.Transform{}, 0, fn)
}

func walk(v *Volume, global geom.Transform, depth int, fn WalkFunc) error {
	if err := fn(v, global, depth); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, p := range v.placements {
		if err := walk(p.child, global.Compose(p.transform), depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the first volume named name under root, including root.
func Find(root *Volume, name string) *Volume {
	var found *Volume
	errStop := errors.New("stop")
	_ = Walk(root, func(v *Volume, _ geom.Transform, _ int) error {
		if v.name == name {
			found = v
			return errStop
		}
		return nil
	})
	return found
}

// GlobalTransform returns the transform from the named volume's frame to
// root's frame, composing every placement on the path.
func GlobalTransform(root *Volume, name string) (geom.Transform, error) {
	v := Find(root, name)
	if v == nil {
		return geom.Transform{}, fmt.Errorf("volume %q not found", name)
	}
	return FrameOf(root, v)
}

// FrameOf returns the transform from v's frame to root's frame.
func FrameOf(root, v *Volume) (geom.Transform, error) {
	if root == nil || v == nil {
		return geom.Transform{}, errors.New("volume: nil volume")
	}
	var chain []geom.Transform
	for cur := v; cur != root; cur = cur.Mother() {
		if cur == nil || cur.placedBy == nil {
			return geom.Transform{}, fmt.Errorf("volume %q is not placed under %q", v.name, root.name)
		}
		chain = append(chain, cur.placedBy.transform)
	}
	var t geom.Transform
	for i := len(chain) - 1; i >= 0; i-- {
		t = t.Compose(chain[i])
	}
	return t, nil
}

// Validate checks the tree under root: volume names are unique and every
// solid is well formed.
func Validate(root *Volume) error {
	if root == nil {
		return failure.Composition("volumes", "", "no world volume")
	}
	seen := make(map[string]bool)
	return Walk(root, func(v *Volume, _ geom.Transform, _ int) error {
		if seen[v.name] {
			return failure.Configuration("volumes", v.name, "duplicate volume name")
		}
		seen[v.name] = true
		if err := solid.Validate(v.solid); err != nil {
			return fmt.Errorf("volume %q: %w", v.name, err)
		}
		return nil
	})
}

// Count returns the number of volumes under root, including root.
func Count(root *Volume) int {
	n := 0
	_ = Walk(root, func(*Volume, geom.Transform, int) error {
		n++
		return nil
	})
	return n
}
