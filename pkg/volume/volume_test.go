package volume

import (
	"math"
	"testing"

	"github.com/chazu/detgeom/pkg/failure"
	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/material"
	"github.com/chazu/detgeom/pkg/sensitive"
	"github.com/chazu/detgeom/pkg/solid"
	"github.com/chazu/detgeom/pkg/vis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	air, pb *material.Material
	box     solid.Box
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cat, err := material.NewCatalog()
	require.NoError(t, err)
	air, err := cat.FindOrBuildMaterial("G4_AIR")
	require.NoError(t, err)
	pb, err := cat.FindOrBuildMaterial("G4_Pb")
	require.NoError(t, err)
	box, err := solid.NewBox("box", 10, 10, 10)
	require.NoError(t, err)
	return fixture{air: air, pb: pb, box: box}
}

func (f fixture) vol(t *testing.T, name string) *Volume {
	t.Helper()
	v, err := New(name, f.box, f.air)
	require.NoError(t, err)
	return v
}

func TestNewRejectsMissingBindings(t *testing.T) {
	f := newFixture(t)
	_, err := New("x", nil, f.air)
	assert.ErrorIs(t, err, failure.ErrComposition)
	_, err = New("x", f.box, nil)
	assert.ErrorIs(t, err, failure.ErrConfiguration)
	_, err = New("", f.box, f.air)
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}

func TestPlaceBuildsTree(t *testing.T) {
	f := newFixture(t)
	world, mid, leaf := f.vol(t, "World"), f.vol(t, "Mid"), f.vol(t, "Leaf")

	p, err := world.Place(mid, geom.Translate(0, 10, -140), 0, true)
	require.NoError(t, err)
	_, err = mid.Place(leaf, geom.Translate(0, 0, -40), 3, true)
	require.NoError(t, err)

	assert.Equal(t, "Mid", p.Name())
	assert.Same(t, world, mid.Mother())
	assert.Same(t, mid, leaf.Mother())
	assert.Nil(t, world.Mother())
	assert.Equal(t, 3, leaf.PlacedBy().CopyNo())
	assert.True(t, leaf.PlacedBy().CheckOverlaps())
	assert.Equal(t, 3, Count(world))

	got, err := GlobalTransform(world, "Leaf")
	require.NoError(t, err)
	assert.Equal(t, geom.Vec3{Y: 10, Z: -180}, got.Translation)
}

func TestPlaceRejectsDoublePlacementAndCycles(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.vol(t, "A"), f.vol(t, "B"), f.vol(t, "C")

	_, err := a.Place(b, geom.Transform{}, 0, true)
	require.NoError(t, err)
	_, err = b.Place(c, geom.Transform{}, 0, true)
	require.NoError(t, err)

	_, err = c.Place(b, geom.Transform{}, 0, true)
	assert.ErrorIs(t, err, failure.ErrComposition, "already placed")

	_, err = c.Place(a, geom.Transform{}, 0, true)
	assert.ErrorIs(t, err, failure.ErrComposition, "cycle")

	_, err = a.Place(a, geom.Transform{}, 0, true)
	assert.ErrorIs(t, err, failure.ErrComposition, "self")

	_, err = a.Place(nil, geom.Transform{}, 0, true)
	assert.ErrorIs(t, err, failure.ErrComposition)
}

func TestSharedSolidAndMaterial(t *testing.T) {
	f := newFixture(t)
	world := f.vol(t, "World")
	for i, name := range []string{"Brick0", "Brick1"} {
		v, err := New(name, f.box, f.pb)
		require.NoError(t, err)
		_, err = world.Place(v, geom.Translate(float64(i)*30, 0, 0), i, false)
		require.NoError(t, err)
	}
	ps := world.Placements()
	require.Len(t, ps, 2)
	assert.Same(t, ps[0].Child().Material(), ps[1].Child().Material())
	assert.Equal(t, ps[0].Child().Solid(), ps[1].Child().Solid())
	assert.False(t, ps[1].CheckOverlaps())
}

func TestRotatedPlacementFrames(t *testing.T) {
	f := newFixture(t)
	world, arm, tip := f.vol(t, "World"), f.vol(t, "Arm"), f.vol(t, "Tip")

	_, err := world.Place(arm, geom.Translate(100, 0, 0).WithRotation(geom.RotateZ(math.Pi/2)), 0, true)
	require.NoError(t, err)
	_, err = arm.Place(tip, geom.Translate(10, 0, 0), 0, true)
	require.NoError(t, err)

	got, err := GlobalTransform(world, "Tip")
	require.NoError(t, err)
	assert.True(t, got.Translation.ApproxEqual(geom.Vec3{X: 100, Y: 10}, 1e-9), "got %v", got.Translation)
}

func TestAnnotationsAreSetOnce(t *testing.T) {
	f := newFixture(t)
	v := f.vol(t, "Fast")
	reg := sensitive.NewRegistry()
	d, err := reg.Register("fastSD")
	require.NoError(t, err)

	require.NoError(t, v.SetSensitive(d))
	assert.ErrorIs(t, v.SetSensitive(d), failure.ErrConfiguration)
	assert.ErrorIs(t, v.SetSensitive(nil), failure.ErrConfiguration)
	assert.Same(t, d, v.Sensitive())

	_, ok := v.Style()
	assert.False(t, ok)
	require.NoError(t, v.SetStyle(vis.Solid(vis.LightBlue)))
	assert.ErrorIs(t, v.SetStyle(vis.Invisible), failure.ErrConfiguration)
	s, ok := v.Style()
	assert.True(t, ok)
	assert.Equal(t, vis.LightBlue, s.Color)
}

func TestWalkOrderAndSkip(t *testing.T) {
	f := newFixture(t)
	world, a, b, a1 := f.vol(t, "World"), f.vol(t, "A"), f.vol(t, "B"), f.vol(t, "A1")
	_, _ = world.Place(a, geom.Transform{}, 0, true)
	_, _ = world.Place(b, geom.Transform{}, 0, true)
	_, _ = a.Place(a1, geom.Transform{}, 0, true)

	var order []string
	require.NoError(t, Walk(world, func(v *Volume, _ geom.Transform, depth int) error {
		order = append(order, v.Name())
		return nil
	}))
	assert.Equal(t, []string{"World", "A", "A1", "B"}, order)

	order = nil
	require.NoError(t, Walk(world, func(v *Volume, _ geom.Transform, _ int) error {
		order = append(order, v.Name())
		if v.Name() == "A" {
			return SkipChildren
		}
		return nil
	}))
	assert.Equal(t, []string{"World", "A", "B"}, order)

	assert.Same(t, a1, Find(world, "A1"))
	assert.Nil(t, Find(world, "missing"))
	_, err := GlobalTransform(world, "missing")
	assert.Error(t, err)
}

func TestValidateDuplicateNames(t *testing.T) {
	f := newFixture(t)
	world, x1, x2 := f.vol(t, "World"), f.vol(t, "X"), f.vol(t, "X")
	_, _ = world.Place(x1, geom.Transform{}, 0, true)
	require.NoError(t, Validate(world))
	_, _ = world.Place(x2, geom.Transform{}, 1, true)
	assert.ErrorIs(t, Validate(world), failure.ErrConfiguration)
	assert.ErrorIs(t, Validate(nil), failure.ErrComposition)
}
