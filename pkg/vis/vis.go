// Package vis holds display attributes for volumes. Styles are cosmetic and
// never affect the simulated geometry.
package vis

import "fmt"

// Color is an RGBA colour with components in [0, 1].
type Color struct {
	R float64 `yaml:"r" json:"r"`
	G float64 `yaml:"g" json:"g"`
	B float64 `yaml:"b" json:"b"`
	A float64 `yaml:"a" json:"a"`
}

// RGB returns an opaque colour.
func RGB(r, g, b float64) Color {
	return Color{R: r, G: g, B: b, A: 1}
}

var (
	White     = RGB(1.0, 1.0, 1.0)
	LightBlue = RGB(0.6, 0.6, 1.0)
	Grey      = RGB(0.8, 0.8, 0.8)
	Red       = RGB(1.0, 0.4, 0.4)
)

// Valid reports whether all components lie in [0, 1].
func (c Color) Valid() bool {
	for _, v := range [4]float64{c.R, c.G, c.B, c.A} {
		if !(v >= 0 && v <= 1) {
			return false
		}
	}
	return true
}

// Hex returns the colour as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Style is the display style of a volume.
type Style struct {
	Color      Color `yaml:"color" json:"color"`
	ForceSolid bool  `yaml:"forceSolid" json:"forceSolid"`
	Visible    bool  `yaml:"visible" json:"visible"`
}

// Invisible hides a volume; used for mother volumes so only leaves render.
var Invisible = Style{Color: White, Visible: false}

// Solid returns a visible, filled style in colour c.
func Solid(c Color) Style {
	return Style{Color: c, ForceSolid: true, Visible: true}
}

// Wireframe returns a visible, unfilled style in colour c.
func Wireframe(c Color) Style {
	return Style{Color: c, Visible: true}
}

func (s Style) String() string {
	if !s.Visible {
		return "invisible"
	}
	if s.ForceSolid {
		return "solid " + s.Color.Hex()
	}
	return "wireframe " + s.Color.Hex()
}
