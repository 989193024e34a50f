package mean

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTabulated(t *testing.T) {
	tab, err := NewTabulated([]float64{0, 1, 2}, []float64{0, 1, 0})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, tab.At(0.5), 1e-15)
	assert.InDelta(t, 0.25, tab.At(1.75), 1e-15)
	assert.InDelta(t, 0.0, tab.At(2), 1e-15)
	assert.True(t, math.IsNaN(tab.At(-0.1)))
	assert.True(t, math.IsNaN(tab.At(2.1)))

	lo, hi := tab.Domain()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 2.0, hi)
}

func TestTabulatedRejectsBadSamples(t *testing.T) {
	tests := []struct {
		name   string
		xs, ys []float64
	}{
		{"length mismatch", []float64{0, 1}, []float64{1}},
		{"single point", []float64{0}, []float64{1}},
		{"repeated x", []float64{0, 1, 1}, []float64{1, 2, 3}},
		{"decreasing x", []float64{0, 2, 1}, []float64{1, 2, 3}},
		{"nan y", []float64{0, 1}, []float64{1, math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTabulated(tt.xs, tt.ys)
			assert.Error(t, err)
		})
	}
}

func TestTabulatedCentroid(t *testing.T) {
	tests := []struct {
		name   string
		xs, ys []float64
		want   float64
	}{
		{"symmetric triangle", []float64{0, 1, 2}, []float64{0, 1, 0}, 1},
		{"ramp", []float64{0, 3}, []float64{0, 3}, 2},
		{"step edges", []float64{0, 1, 3, 4}, []float64{0, 1, 1, 0}, 2},
		{"skewed triangle", []float64{0, 1, 4}, []float64{0, 2, 0}, 5.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab, err := NewTabulated(tt.xs, tt.ys)
			require.NoError(t, err)
			lo, hi := tab.Domain()
			got, err := ComputeWeightedMean(tab.At, lo, hi)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-8)
		})
	}
}

func TestParseCurve(t *testing.T) {
	c, err := ParseCurve([]byte(`
name: bgo response
unit: keV
points: [[0, 0], [1, 2], [4, 0]]
`))
	require.NoError(t, err)
	assert.Equal(t, "bgo response", c.Name)
	assert.Equal(t, "keV", c.Unit)
	assert.Len(t, c.Points, 3)
	assert.Equal(t, 0.0, c.Lower)
	assert.Equal(t, 4.0, c.Upper)

	m, err := c.Mean(nil)
	require.NoError(t, err)
	assert.InDelta(t, 5.0/3.0, m, 1e-8)
}

func TestParseCurveInterval(t *testing.T) {
	c, err := ParseCurve([]byte("points: [[0, 1], [10, 1]]\nlower: 2\nupper: 4\n"))
	require.NoError(t, err)
	m, err := c.Mean(New())
	require.NoError(t, err)
	assert.InDelta(t, 3.0, m, 1e-10)

	// An interval reaching past the samples is undefined there.
	c, err = ParseCurve([]byte("points: [[0, 1], [10, 1]]\nupper: 12\n"))
	require.NoError(t, err)
	_, err = c.Mean(nil)
	assert.ErrorIs(t, err, ErrUndefined)
}

func TestParseCurveErrors(t *testing.T) {
	for _, doc := range []string{
		"points: [[0, 1, 2], [1, 1, 1]]",
		"points: [[0, 1]]",
		"points: {x: 1}",
	} {
		_, err := ParseCurve([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestLoadCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curve.yaml")
	require.NoError(t, os.WriteFile(path, []byte("points: [[0, 0], [3, 3]]\n"), 0o644))
	c, err := LoadCurve(path)
	require.NoError(t, err)
	m, err := c.Mean(nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, m, 1e-10)

	_, err = LoadCurve(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
