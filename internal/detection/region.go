package detection

import (
	"image"
	"math"
	"sort"
)

// Region is an axis-aligned text box in original-image pixel coordinates.
type Region struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width of the region.
func (r Region) Width() float64 { return r.Right - r.Left }

// Height of the region.
func (r Region) Height() float64 { return r.Bottom - r.Top }

// Intersects reports whether r and o share interior area. Regions that only
// touch along an edge do not intersect.
func (r Region) Intersects(o Region) bool {
	return r.Left < o.Right && r.Right > o.Left && r.Top < o.Bottom && r.Bottom > o.Top
}

// Union returns the smallest region covering r and o.
func (r Region) Union(o Region) Region {
	return Region{
		Left:   math.Min(r.Left, o.Left),
		Top:    math.Min(r.Top, o.Top),
		Right:  math.Max(r.Right, o.Right),
		Bottom: math.Max(r.Bottom, o.Bottom),
	}
}

// Clamp limits r to [0, width] x [0, height].
func (r Region) Clamp(width, height float64) Region {
	return Region{
		Left:   clamp(r.Left, 0, width),
		Top:    clamp(r.Top, 0, height),
		Right:  clamp(r.Right, 0, width),
		Bottom: clamp(r.Bottom, 0, height),
	}
}

// Rect converts r to integer pixel bounds for cropping: the origin is
// truncated toward zero and the size is the truncated width and height.
func (r Region) Rect() image.Rectangle {
	x := int(r.Left)
	y := int(r.Top)
	return image.Rect(x, y, x+int(r.Width()), y+int(r.Height()))
}

// MergeOverlapping repeatedly replaces any two intersecting regions with
// their union until no two regions intersect.
//
// Earlier regions absorb later ones, so the result keeps discovery order
// for the regions that survive. The input slice is not modified.
func MergeOverlapping(regions []Region) []Region {
	merged := append([]Region(nil), regions...)

	for changed := true; changed; {
		changed = false
		for i := 0; i < len(merged); i++ {
			for j := i + 1; j < len(merged); {
				if merged[i].Intersects(merged[j]) {
					merged[i] = merged[i].Union(merged[j])
					merged = append(merged[:j], merged[j+1:]...)
					changed = true
					continue
				}
				j++
			}
		}
	}
	return merged
}

// SortReadingOrder orders regions top-to-bottom, then left-to-right for
// regions whose vertical centers are within half a line height of each
// other.
func SortReadingOrder(regions []Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i], regions[j]
		ca := (a.Top + a.Bottom) / 2
		cb := (b.Top + b.Bottom) / 2
		line := math.Min(a.Height(), b.Height()) / 2
		if math.Abs(ca-cb) <= line {
			return a.Left < b.Left
		}
		return ca < cb
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
