package recognition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// step returns logits with a single confident class.
func step(classes, idx int) []float32 {
	s := make([]float32, classes)
	s[idx] = 10
	return s
}

func TestCharset(t *testing.T) {
	cs := NewCharset(DefaultCharset)
	assert.Equal(t, 96, len(cs))
	assert.Equal(t, 97, cs.NumClasses())

	tests := []struct {
		idx  int
		want rune
		ok   bool
	}{
		{0, 0, false},
		{1, '0', true},
		{11, '!', true},
		{43, ' ', true},
		{44, '€', true},
		{45, 'A', true},
		{96, 'z', true},
		{97, 0, false},
		{-1, 0, false},
	}
	for _, tt := range tests {
		r, ok := cs.Char(tt.idx)
		assert.Equal(t, tt.ok, ok, "index %d", tt.idx)
		if tt.ok {
			assert.Equal(t, tt.want, r, "index %d", tt.idx)
		}
	}
}

func TestDecode(t *testing.T) {
	cs := NewCharset("ABC")
	n := cs.NumClasses()
	const blank, a, b = 0, 1, 2

	tests := []struct {
		name  string
		steps []int
		want  string
	}{
		{"all blank", []int{blank, blank, blank}, ""},
		{"repeats collapse", []int{a, a, a}, "A"},
		{"blank separates repeats", []int{blank, a, a, blank, a}, "AA"},
		{"different classes", []int{a, b, b, a}, "ABA"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dists := make([][]float32, len(tt.steps))
			for i, idx := range tt.steps {
				dists[i] = step(n, idx)
			}
			assert.Equal(t, tt.want, Decode(dists, cs, 0.1, 1.0))
		})
	}
}

func TestDecode_LowConfidenceStillUpdatesPrevious(t *testing.T) {
	cs := NewCharset(DefaultCharset)
	n := cs.NumClasses()

	// Near-uniform scores with class 45 ('A') marginally ahead: it wins the
	// argmax but with probability ~1/97, below the emission threshold.
	weak := make([]float32, n)
	weak[45] = 0.01

	dists := [][]float32{weak, step(n, 45), step(n, 0), step(n, 45)}
	// First A is suppressed, second A equals previous and is collapsed, the
	// blank resets, the last A is emitted.
	assert.Equal(t, "A", Decode(dists, cs, 0.1, 1.0))
}

func TestDecode_OutOfRangeClassEmitsNothing(t *testing.T) {
	cs := NewCharset("AB")
	dists := [][]float32{step(5, 4), step(5, 1)}
	assert.Equal(t, "A", Decode(dists, cs, 0.1, 1.0))
}

func TestDecode_Temperature(t *testing.T) {
	cs := NewCharset("AB")
	// Logits 0, 1.0, 0: softmax(T=1) puts ~0.58 on A; T=100 flattens it to
	// ~0.34 which is still above 0.1, but a 0.5 threshold rejects it.
	dists := [][]float32{{0, 1.0, 0}}
	assert.Equal(t, "A", Decode(dists, cs, 0.5, 1.0))
	assert.Equal(t, "", Decode(dists, cs, 0.5, 100.0))
}

func TestDecode_LargeLogitsStable(t *testing.T) {
	cs := NewCharset("AB")
	dists := [][]float32{{1000, 3000, 2000}, {5000, 0, 0}, {0, 0, 90000}}
	assert.Equal(t, "AB", Decode(dists, cs, 0.1, 1.0))
}

func TestSoftmax(t *testing.T) {
	p := softmax(nil, []float32{1, 2, 3}, 1)
	var sum float64
	for _, v := range p {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Greater(t, p[2], p[1])
	assert.Equal(t, 2, argmax(p))

	// Non-positive temperature falls back to 1.
	assert.Equal(t, p, softmax(nil, []float32{1, 2, 3}, 0))
}
