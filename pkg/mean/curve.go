package mean

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/interp"
	"gopkg.in/yaml.v3"
)

// Tabulated is a sampled response curve, linearly interpolated between
// samples. It is undefined (NaN) outside the sampled range.
type Tabulated struct {
	lo, hi float64
	pl     interp.PiecewiseLinear
}

// NewTabulated fits a curve through (xs[i], ys[i]). xs must be strictly
// increasing and every value finite.
func NewTabulated(xs, ys []float64) (*Tabulated, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("mean: %d x values but %d y values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("mean: curve needs at least 2 points, got %d", len(xs))
	}
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsInf(xs[i], 0) || math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			return nil, fmt.Errorf("mean: point %d (%g, %g) is not finite", i, xs[i], ys[i])
		}
		if i > 0 && !(xs[i] > xs[i-1]) {
			return nil, fmt.Errorf("mean: x values must increase strictly, got %g after %g", xs[i], xs[i-1])
		}
	}
	t := &Tabulated{lo: xs[0], hi: xs[len(xs)-1]}
	if err := t.pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("mean: fitting curve: %w", err)
	}
	return t, nil
}

// At evaluates the curve at x.
func (t *Tabulated) At(x float64) float64 {
	if x < t.lo || x > t.hi {
		return math.NaN()
	}
	return t.pl.Predict(x)
}

// Domain returns the sampled range.
func (t *Tabulated) Domain() (lo, hi float64) {
	return t.lo, t.hi
}

// Curve is a response curve read from a file, with the interval to
// average over.
type Curve struct {
	Name   string
	Unit   string
	Points [][2]float64
	Lower  float64
	Upper  float64
	Func   *Tabulated
}

type curveFile struct {
	Name   string      `yaml:"name"`
	Unit   string      `yaml:"unit"`
	Points [][]float64 `yaml:"points"`
	Lower  *float64    `yaml:"lower"`
	Upper  *float64    `yaml:"upper"`
}

// ParseCurve reads a curve from YAML:
//
//	name: fast scintillator response
//	unit: keV
//	points: [[10, 0.1], [20, 0.5], [30, 0.2]]
//	lower: 10
//	upper: 30
//
// lower and upper default to the sampled range.
func ParseCurve(data []byte) (*Curve, error) {
	var f curveFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("mean: parsing curve: %w", err)
	}

	c := &Curve{Name: f.Name, Unit: f.Unit, Points: make([][2]float64, len(f.Points))}
	xs := make([]float64, len(f.Points))
	ys := make([]float64, len(f.Points))
	for i, p := range f.Points {
		if len(p) != 2 {
			return nil, fmt.Errorf("mean: point %d has %d values, want 2", i, len(p))
		}
		xs[i], ys[i] = p[0], p[1]
		c.Points[i] = [2]float64{p[0], p[1]}
	}
	t, err := NewTabulated(xs, ys)
	if err != nil {
		return nil, err
	}
	c.Func = t

	c.Lower, c.Upper = t.Domain()
	if f.Lower != nil {
		c.Lower = *f.Lower
	}
	if f.Upper != nil {
		c.Upper = *f.Upper
	}
	return c, nil
}

// LoadCurve reads a curve file.
func LoadCurve(path string) (*Curve, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mean: reading curve: %w", err)
	}
	return ParseCurve(data)
}

// Mean returns the weighted mean of the curve over its interval.
func (c *Curve) Mean(e *Estimator) (float64, error) {
	if e == nil {
		e = defaultEstimator
	}
	return e.WeightedMean(c.Func.At, c.Lower, c.Upper)
}
