package overlap

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/detgeom/pkg/detector"
	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/kernel/sdfx"
)

func quietLogger() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

// build builds the reference after letting edit change its description.
func build(t *testing.T, edit func(*detector.Description)) *detector.World {
	t.Helper()
	w, err := detector.New(
		detector.WithLogger(quietLogger()),
		detector.WithDescription(func(p detector.Params) (detector.Description, error) {
			d := detector.Reference(p)
			if edit != nil {
				edit(&d)
			}
			return d, nil
		}),
	).Build(nil, nil)
	require.NoError(t, err)
	return w
}

// move changes the translation of the placement of name.
func move(name string, to geom.Vec3) func(*detector.Description) {
	return func(d *detector.Description) {
		for i := range d.Placements {
			if d.Placements[i].Volume == name {
				d.Placements[i].Transform = geom.Transform{Translation: to}
			}
		}
	}
}

func newChecker(opts ...Option) *Checker {
	opts = append([]Option{WithSamples(2000), WithLogger(quietLogger())}, opts...)
	return New(sdfx.New(), opts...)
}

func TestReferenceIsClean(t *testing.T) {
	w := build(t, nil)
	found, err := newChecker().Check(w.Root)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDetectsSiblingIntersection(t *testing.T) {
	w := build(t, move(detector.PMTubeName, geom.Vec3{Z: -100}))
	found, err := newChecker().Check(w.Root)
	require.NoError(t, err)

	pairs := map[[2]string]Overlap{}
	for _, o := range found {
		assert.Equal(t, Intersection, o.Kind)
		assert.Equal(t, detector.SDCName, o.Mother)
		assert.Greater(t, o.Depth, DefaultTolerance)
		pairs[[2]string{o.Volume, o.Other}] = o
	}
	assert.Len(t, pairs, 2)
	assert.Contains(t, pairs, [2]string{detector.BGOName, detector.PMTubeName})
	assert.Contains(t, pairs, [2]string{detector.PMTubeName, detector.BGOName})

	// The shared region lies between the BGO bottom and the tube top.
	o := pairs[[2]string{detector.PMTubeName, detector.BGOName}]
	assert.True(t, o.Point.Z > -40 && o.Point.Z < -10, "point %v", o.Point)
}

func TestDetectsExtrusion(t *testing.T) {
	w := build(t, move(detector.FastName, geom.Vec3{Z: 50}))
	found, err := newChecker().Check(w.Root)
	require.NoError(t, err)
	require.Len(t, found, 1)

	o := found[0]
	assert.Equal(t, Extrusion, o.Kind)
	assert.Equal(t, detector.FastName, o.Volume)
	assert.Equal(t, detector.SDCName, o.Mother)
	assert.Empty(t, o.Other)
	assert.Greater(t, o.Point.Z, 120.0)
	assert.Contains(t, o.String(), "extrudes from SDCUnit")
}

func TestHonoursOverlapFlag(t *testing.T) {
	w := build(t, func(d *detector.Description) {
		move(detector.PMTubeName, geom.Vec3{Z: -100})(d)
		off := false
		d.OverlapCheck = &off
	})
	found, err := newChecker().Check(w.Root)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDeterministic(t *testing.T) {
	w := build(t, move(detector.PMTubeName, geom.Vec3{Z: -100}))
	a, err := newChecker(WithSeed(7)).Check(w.Root)
	require.NoError(t, err)
	b, err := newChecker(WithSeed(7)).Check(w.Root)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLogsOverlaps(t *testing.T) {
	w := build(t, move(detector.FastName, geom.Vec3{Z: 50}))
	l, hook := test.NewNullLogger()
	_, err := newChecker(WithLogger(logrus.NewEntry(l))).Check(w.Root)
	require.NoError(t, err)

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, "extrusion", entries[0].Data["kind"])
	assert.Equal(t, detector.FastName, entries[0].Data["volume"])
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	c := New(sdfx.New(), WithSamples(0), WithTolerance(-1), WithLogger(nil))
	assert.Equal(t, DefaultSamples, c.samples)
	assert.Equal(t, DefaultTolerance, c.tolerance)
	assert.NotNil(t, c.log)
}
