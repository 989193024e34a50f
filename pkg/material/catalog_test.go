package material

import (
	"math"
	"testing"

	"github.com/chazu/detgeom/pkg/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog()
	require.NoError(t, err)
	return c
}

var al6061 = []Fraction{
	{"Si", 0.006}, {"Fe", 0.005}, {"Cu", 0.003}, {"Mn", 0.001}, {"Mg", 0.010},
	{"Cr", 0.002}, {"Zn", 0.002}, {"Ti", 0.001}, {"Al", 0.970},
}

func TestFindOrBuildReturnsSharedPointer(t *testing.T) {
	c := newCatalog(t)

	a, err := c.FindOrBuildMaterial("G4_AIR")
	require.NoError(t, err)
	b, err := c.FindOrBuildMaterial("G4_AIR")
	require.NoError(t, err)
	assert.Same(t, a, b)

	si1, err := c.FindOrBuildElement("Si")
	require.NoError(t, err)
	si2, err := c.FindOrBuildElement("Si")
	require.NoError(t, err)
	assert.Same(t, si1, si2)
	assert.Equal(t, 14, si1.Z())

	// Materials built from the table share element pointers too.
	water, err := c.FindOrBuildMaterial("G4_WATER")
	require.NoError(t, err)
	air, _ := c.Lookup("G4_AIR")
	assert.Same(t, water.Components()[1].Element, air.Components()[2].Element)
}

func TestUnknownNames(t *testing.T) {
	c := newCatalog(t)

	_, err := c.FindOrBuildMaterial("G4_UNOBTAINIUM")
	assert.ErrorIs(t, err, failure.ErrConfiguration)

	_, err = c.FindOrBuildElement("Xx")
	assert.ErrorIs(t, err, failure.ErrConfiguration)

	_, err = c.DefineComposite("bad", 1.0, []Fraction{{"Xx", 1.0}})
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}

func TestDefineComposite(t *testing.T) {
	c := newCatalog(t)

	m, err := c.DefineComposite("Al_6061", 2.70, al6061)
	require.NoError(t, err)
	assert.Equal(t, 9, m.NumElements())
	assert.InDelta(t, 1.0, m.FractionSum(), FractionTolerance)
	assert.Equal(t, "Si", m.Components()[0].Element.Symbol())
	assert.Equal(t, "Al", m.Components()[8].Element.Symbol())

	got, err := c.FindOrBuildMaterial("Al_6061")
	require.NoError(t, err)
	assert.Same(t, m, got)
}

func TestDefineCompositeFractionSum(t *testing.T) {
	tests := []struct {
		name      string
		fractions []Fraction
		wantErr   bool
	}{
		{"exact", []Fraction{{"H", 0.5}, {"O", 0.5}}, false},
		{"within tolerance", []Fraction{{"H", 0.5}, {"O", 0.5000005}}, false},
		{"sums to 0.95", []Fraction{{"H", 0.45}, {"O", 0.5}}, true},
		{"sums above one", []Fraction{{"H", 0.6}, {"O", 0.5}}, true},
		{"negative fraction", []Fraction{{"H", -0.5}, {"O", 1.5}}, true},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCatalog(t)
			_, err := c.DefineComposite("mix", 1.0, tt.fractions)
			if tt.wantErr {
				assert.ErrorIs(t, err, failure.ErrConfiguration)
				_, ok := c.Lookup("mix")
				assert.False(t, ok, "failed composite must not be registered")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRedefinition(t *testing.T) {
	c := newCatalog(t)

	first, err := c.DefineComposite("Al_6061", 2.70, al6061)
	require.NoError(t, err)

	again, err := c.DefineComposite("Al_6061", 2.70, al6061)
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = c.DefineComposite("Al_6061", 2.80, al6061)
	assert.ErrorIs(t, err, failure.ErrConfiguration)

	_, err = c.DefineComposite("G4_WATER", 1.0, []Fraction{{"H", 1.0}})
	assert.ErrorIs(t, err, failure.ErrConfiguration)
}

func TestBadDensity(t *testing.T) {
	c := newCatalog(t)
	for _, d := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := c.DefineComposite("x", d, []Fraction{{"H", 1}})
		assert.ErrorIs(t, err, failure.ErrConfiguration, "density %g", d)
	}
}

func TestEmbeddedTableIsConsistent(t *testing.T) {
	c := newCatalog(t)
	for _, name := range c.Predefined() {
		m, err := c.FindOrBuildMaterial(name)
		require.NoError(t, err, name)
		assert.InDelta(t, 1.0, m.FractionSum(), FractionTolerance, name)
	}
	assert.Equal(t, c.Predefined(), c.Names())
}
