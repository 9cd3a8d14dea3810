package detection

import (
	"image"

	"github.com/ironsheep/label-ocr-mcp/internal/imaging"
	"github.com/ironsheep/label-ocr-mcp/internal/tensor"
)

// gridBox is an inclusive bounding box on the score-map grid.
type gridBox struct {
	minX, minY, maxX, maxY int
}

// PostProcess turns detector score maps into text regions in source pixels.
//
// # Algorithm
//
//  1. Scan grid cells in raster order, skipping visited cells.
//  2. A cell with text score above TextThreshold seeds a breadth-first
//     fill over its 4-neighborhood. A neighbor joins when its text score
//     exceeds LowText or its link score exceeds LinkThreshold.
//  3. The component's grid bounding box is mapped to the model input canvas
//     and then through tf back to source pixels, clamped to the source.
//  4. Boxes whose width or height is not greater than MinSize are dropped.
//  5. Survivors grow by AddMargin of their size on each side, clamped.
//  6. Overlapping boxes are merged until none intersect.
//
// For a stretch transform step 3 reduces to scaling by sourceDim/gridDim.
func PostProcess(maps *tensor.ScoreMaps, tf imaging.Transform, cfg Config) []Region {
	if maps == nil || maps.Width <= 0 || maps.Height <= 0 {
		return nil
	}

	srcW := float64(tf.SrcWidth)
	srcH := float64(tf.SrcHeight)
	cellW := float64(tf.DstWidth) / float64(maps.Width)
	cellH := float64(tf.DstHeight) / float64(maps.Height)

	visited := make([]bool, maps.Width*maps.Height)
	regions := make([]Region, 0)

	for y := 0; y < maps.Height; y++ {
		for x := 0; x < maps.Width; x++ {
			idx := y*maps.Width + x
			if visited[idx] || maps.Text[idx] <= cfg.TextThreshold {
				continue
			}

			box := floodFill(maps, visited, x, y, cfg)

			left, top := tf.ToSource(float64(box.minX)*cellW, float64(box.minY)*cellH)
			right, bottom := tf.ToSource(float64(box.maxX)*cellW, float64(box.maxY)*cellH)
			r := Region{Left: left, Top: top, Right: right, Bottom: bottom}.Clamp(srcW, srcH)

			if r.Width() <= cfg.MinSize || r.Height() <= cfg.MinSize {
				continue
			}

			mx := r.Width() * cfg.AddMargin
			my := r.Height() * cfg.AddMargin
			r = Region{
				Left:   r.Left - mx,
				Top:    r.Top - my,
				Right:  r.Right + mx,
				Bottom: r.Bottom + my,
			}.Clamp(srcW, srcH)

			regions = append(regions, r)
		}
	}

	merged := MergeOverlapping(regions)
	if cfg.SortRegions {
		SortReadingOrder(merged)
	}
	return merged
}

// floodFill grows the component seeded at (sx, sy), marking cells visited
// as they are queued, and returns its bounding box.
func floodFill(maps *tensor.ScoreMaps, visited []bool, sx, sy int, cfg Config) gridBox {
	w, h := maps.Width, maps.Height
	box := gridBox{minX: sx, minY: sy, maxX: sx, maxY: sy}

	queue := []image.Point{{X: sx, Y: sy}}
	visited[sy*w+sx] = true

	neighbors := [4]image.Point{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}

	for head := 0; head < len(queue); head++ {
		p := queue[head]
		box.minX = min(box.minX, p.X)
		box.minY = min(box.minY, p.Y)
		box.maxX = max(box.maxX, p.X)
		box.maxY = max(box.maxY, p.Y)

		for _, d := range neighbors {
			nx, ny := p.X+d.X, p.Y+d.Y
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			i := ny*w + nx
			if visited[i] {
				continue
			}
			if text, link := maps.At(nx, ny); text > cfg.LowText || link > cfg.LinkThreshold {
				visited[i] = true
				queue = append(queue, image.Point{X: nx, Y: ny})
			}
		}
	}
	return box
}
