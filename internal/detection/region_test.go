package detection

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegion_Intersects(t *testing.T) {
	a := Region{Left: 0, Top: 0, Right: 10, Bottom: 10}

	tests := []struct {
		name string
		b    Region
		want bool
	}{
		{"overlapping", Region{5, 5, 15, 15}, true},
		{"contained", Region{2, 2, 4, 4}, true},
		{"touching edge", Region{10, 0, 20, 10}, false},
		{"disjoint", Region{20, 20, 30, 30}, false},
		{"vertical only", Region{2, 12, 4, 14}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Intersects(tt.b))
			assert.Equal(t, tt.want, tt.b.Intersects(a))
		})
	}
}

func TestRegion_Rect(t *testing.T) {
	r := Region{Left: 10.7, Top: 5.2, Right: 50.9, Bottom: 25.1}
	assert.Equal(t, image.Rect(10, 5, 50, 24), r.Rect())
}

func TestMergeOverlapping_Chain(t *testing.T) {
	// a overlaps b, b overlaps c, a and c are apart: one pass over a alone
	// is not enough, the loop must reach the fixed point.
	in := []Region{
		{0, 0, 10, 10},
		{30, 0, 40, 10},
		{8, 0, 32, 10},
	}
	out := MergeOverlapping(in)
	assert.Equal(t, []Region{{0, 0, 40, 10}}, out)
	assert.Len(t, in, 3, "input must not be modified")
}

func TestMergeOverlapping_UnionCreatesNewOverlap(t *testing.T) {
	in := []Region{
		{0, 0, 10, 10},
		{0, 20, 10, 30},
		{5, 5, 15, 25}, // joins the first, and the union now reaches the second
		{50, 50, 60, 60},
	}
	out := MergeOverlapping(in)
	assert.Equal(t, []Region{{0, 0, 15, 30}, {50, 50, 60, 60}}, out)
}

func TestMergeOverlapping_DisjointIsIdempotent(t *testing.T) {
	in := []Region{
		{0, 0, 10, 10},
		{10, 0, 20, 10},
		{0, 20, 10, 30},
	}
	once := MergeOverlapping(in)
	assert.Equal(t, in, once)
	assert.Equal(t, once, MergeOverlapping(once))
	assert.Empty(t, MergeOverlapping(nil))
}

func TestSortReadingOrder(t *testing.T) {
	regions := []Region{
		{Left: 200, Top: 100, Right: 300, Bottom: 130}, // second line, right
		{Left: 150, Top: 12, Right: 260, Bottom: 40},   // first line, right
		{Left: 10, Top: 100, Right: 120, Bottom: 128},  // second line, left
		{Left: 10, Top: 10, Right: 140, Bottom: 40},    // first line, left
	}
	SortReadingOrder(regions)

	assert.Equal(t, 10.0, regions[0].Left)
	assert.Equal(t, 150.0, regions[1].Left)
	assert.Equal(t, 10.0, regions[2].Left)
	assert.Equal(t, 200.0, regions[3].Left)
}
