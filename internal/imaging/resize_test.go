package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResizeWithAspectPad_Dimensions(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		dstW, dstH int
		scaledW    int
		scaledH    int
	}{
		{"wide strip", 500, 50, 1000, 64, 640, 64},
		{"very wide", 4000, 100, 1000, 64, 1000, 25},
		{"tall", 100, 400, 1000, 64, 16, 64},
		{"square into detector", 1200, 1200, 800, 608, 608, 608},
		{"tiny", 3, 2, 1000, 64, 96, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := solidImage(tt.srcW, tt.srcH, color.Black)
			out, tf, err := ResizeWithAspectPad(src, tt.dstW, tt.dstH, color.White)
			require.NoError(t, err)

			assert.Equal(t, tt.dstW, out.Bounds().Dx())
			assert.Equal(t, tt.dstH, out.Bounds().Dy())
			assert.Equal(t, tt.srcW, tf.SrcWidth)
			assert.Equal(t, tt.dstH, tf.DstHeight)

			// Content occupies the top-left scaledW x scaledH; the rest is pad.
			assert.InDelta(t, float64(tt.scaledW)/float64(tt.srcW), tf.ScaleX, 1e-9)
			assert.InDelta(t, float64(tt.scaledH)/float64(tt.srcH), tf.ScaleY, 1e-9)
			assert.Equal(t, color.NRGBA{0, 0, 0, 255}, out.NRGBAAt(0, 0))
			if tt.scaledW < tt.dstW {
				assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(tt.dstW-1, 0))
			}
			if tt.scaledH < tt.dstH {
				assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(0, tt.dstH-1))
			}
		})
	}
}

func TestResizeWithAspectPad_Invalid(t *testing.T) {
	_, _, err := ResizeWithAspectPad(image.NewRGBA(image.Rect(0, 0, 0, 0)), 10, 10, color.White)
	assert.Error(t, err)

	_, _, err = ResizeWithAspectPad(solidImage(5, 5, color.White), 0, 10, color.White)
	assert.Error(t, err)
}

func TestResizeStretch(t *testing.T) {
	src := solidImage(400, 300, color.Gray{200})
	out, tf, err := ResizeStretch(src, 800, 608)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 800, 608), out.Bounds())
	assert.InDelta(t, 2.0, tf.ScaleX, 1e-9)
	assert.InDelta(t, 608.0/300.0, tf.ScaleY, 1e-9)
}

func TestTransform_ToSource(t *testing.T) {
	tf := StretchTransform(1600, 1216, 800, 608)
	x, y := tf.ToSource(400, 304)
	assert.InDelta(t, 800, x, 1e-9)
	assert.InDelta(t, 608, y, 1e-9)

	padded := Transform{ScaleX: 0.5, ScaleY: 0.5, PadX: 10, PadY: 20}
	x, y = padded.ToSource(60, 70)
	assert.InDelta(t, 100, x, 1e-9)
	assert.InDelta(t, 100, y, 1e-9)
}
