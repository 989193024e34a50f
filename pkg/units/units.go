// Package units defines the unit system used for all stored geometry.
// Lengths are kept in millimetres, angles in radians and densities in g/cm3.
// Multiply a literal by a unit to normalise it: 22*units.Centimeter == 220.
package units

import "math"

// Length.
const (
	Millimeter = 1.0
	Centimeter = 10.0 * Millimeter
	Meter      = 1000.0 * Millimeter

	MM = Millimeter
	CM = Centimeter
	M  = Meter
)

// Angle.
const (
	Radian = 1.0
	Degree = math.Pi / 180.0 * Radian

	Rad = Radian
	Deg = Degree
)

// Density.
const (
	GramPerCm3 = 1.0
	MgPerCm3   = 1e-3 * GramPerCm3
)

// PerCent scales a percentage to a fraction.
const PerCent = 0.01

// FullCircle is a complete phi range.
const FullCircle = 2 * math.Pi
