package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorMatrix_Identity(t *testing.T) {
	c := color.RGBA{12, 130, 250, 255}
	assert.Equal(t, c, IdentityMatrix().Transform(c))
	assert.Equal(t, c, SaturationMatrix(1).Transform(c))
	assert.Equal(t, IdentityMatrix(), ScaleOffsetMatrix(1, 0))
}

func TestColorMatrix_ThenOrder(t *testing.T) {
	// Scale first then offset differs from offset first then scale.
	scale := ScaleOffsetMatrix(2, 0)
	offset := ScaleOffsetMatrix(1, 10)

	c := color.RGBA{50, 50, 50, 255}
	assert.Equal(t, uint8(110), scale.Then(offset).Transform(c).R)
	assert.Equal(t, uint8(120), offset.Then(scale).Transform(c).R)
}

func TestColorMatrix_Clamps(t *testing.T) {
	m := ScaleOffsetMatrix(1.2, -15)
	assert.Equal(t, uint8(0), m.Transform(color.RGBA{5, 5, 5, 255}).R)
	assert.Equal(t, uint8(255), m.Transform(color.RGBA{250, 250, 250, 255}).R)
}

func TestEnhanceVisibility(t *testing.T) {
	src := solidImage(4, 4, color.RGBA{100, 100, 100, 255})
	out := EnhanceVisibility(src)

	// Gray input is unaffected by saturation: 100*1.2 - 15 = 105.
	got := out.RGBAAt(1, 1)
	assert.Equal(t, color.RGBA{105, 105, 105, 255}, got)

	// Source must be untouched.
	assert.Equal(t, color.RGBA{100, 100, 100, 255}, src.RGBAAt(1, 1))
	assert.Equal(t, src.Bounds(), out.Bounds())
}

func TestEnhanceVisibility_BoostsSaturation(t *testing.T) {
	src := solidImage(2, 2, color.RGBA{180, 90, 60, 255})
	out := EnhanceVisibility(src).RGBAAt(0, 0)

	spreadIn := 180 - 60
	spreadOut := int(out.R) - int(out.B)
	assert.Greater(t, spreadOut, spreadIn)
}

func TestToGrayscale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 1))
	src.Set(0, 0, color.RGBA{255, 0, 0, 255})
	src.Set(1, 0, color.RGBA{0, 255, 0, 255})
	src.Set(2, 0, color.RGBA{0, 0, 255, 255})

	out := ToGrayscale(src)
	for x := 0; x < 3; x++ {
		p := out.RGBAAt(x, 0)
		assert.Equal(t, p.R, p.G, "pixel %d", x)
		assert.Equal(t, p.G, p.B, "pixel %d", x)
		assert.Equal(t, uint8(255), p.A)
	}

	// Green carries the most luminance, blue the least.
	assert.Greater(t, out.RGBAAt(1, 0).R, out.RGBAAt(0, 0).R)
	assert.Greater(t, out.RGBAAt(0, 0).R, out.RGBAAt(2, 0).R)
}
