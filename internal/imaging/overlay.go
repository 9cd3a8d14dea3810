package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DrawRegions returns a copy of img with each rectangle outlined and
// numbered in detection order.
//
// Parameters:
//   - img: the image the rectangles refer to. It is not modified.
//   - rects: regions in img's coordinate space. Out-of-bounds edges are clipped.
//   - thickness: outline width in pixels; values below 1 are treated as 1.
//
// Each outline gets its own palette color so overlapping boxes stay
// distinguishable. Labels are drawn with the basicfont 7x13 face on a dark
// backing so they remain legible on bright label stock.
func DrawRegions(img image.Image, rects []image.Rectangle, thickness int) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	if thickness < 1 {
		thickness = 1
	}

	for i, r := range rects {
		c := PaletteColor(i)
		drawOutline(out, r.Canon().Intersect(bounds), thickness, c)
		drawLabel(out, r.Min.X+thickness+1, r.Min.Y+thickness+1, strconv.Itoa(i+1), c)
	}
	return out
}

func drawOutline(img *image.RGBA, r image.Rectangle, thickness int, c color.Color) {
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(r), src, image.Point{}, draw.Over)
	}
}

// drawLabel renders text with its top-left corner at (x, y).
func drawLabel(img *image.RGBA, x, y int, text string, fg color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	bg := image.Rect(x-1, y-1, x+width+1, y+height).Intersect(img.Bounds())
	draw.Draw(img, bg, image.NewUniform(color.RGBA{0, 0, 0, 180}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
