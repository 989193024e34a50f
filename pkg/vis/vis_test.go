package vis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamedColours(t *testing.T) {
	assert.Equal(t, "#ffffff", White.Hex())
	assert.Equal(t, "#9999ff", LightBlue.Hex())
	assert.Equal(t, "#ff6666", Red.Hex())
	assert.True(t, Grey.Valid())
}

func TestStyles(t *testing.T) {
	s := Solid(Red)
	assert.True(t, s.Visible)
	assert.True(t, s.ForceSolid)
	assert.Equal(t, "solid #ff6666", s.String())
	assert.Equal(t, "invisible", Invisible.String())
	assert.Equal(t, "wireframe #ffffff", Wireframe(White).String())
	assert.False(t, Color{R: 2}.Valid())
}
