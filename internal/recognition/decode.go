package recognition

import (
	"math"
	"strings"
)

// Decode performs greedy CTC decoding of per-timestep class scores.
//
// For every timestep the raw scores are turned into probabilities with a
// temperature-scaled softmax and the most likely class is taken. A blank
// emits nothing. Any other class is emitted when its probability exceeds
// emissionThreshold and it differs from the previous timestep's class, so
// repeats collapse unless a blank separates them. The previous class is
// updated on every timestep.
func Decode(dists [][]float32, charset Charset, emissionThreshold, temperature float64) string {
	var sb strings.Builder
	prev := BlankIndex
	probs := make([]float64, 0, charset.NumClasses())

	for _, scores := range dists {
		if len(scores) == 0 {
			continue
		}
		probs = softmax(probs[:0], scores, temperature)
		idx := argmax(probs)

		if idx == BlankIndex {
			prev = BlankIndex
			continue
		}
		if probs[idx] > emissionThreshold && idx != prev {
			if r, ok := charset.Char(idx); ok {
				sb.WriteRune(r)
			}
		}
		prev = idx
	}
	return sb.String()
}

// softmax writes the normalized exponentials of scores/temperature into dst.
// The maximum is subtracted first so large logits do not overflow.
func softmax(dst []float64, scores []float32, temperature float64) []float64 {
	if temperature <= 0 {
		temperature = 1
	}
	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, float64(s))
	}

	var sum float64
	for _, s := range scores {
		e := math.Exp((float64(s) - maxScore) / temperature)
		dst = append(dst, e)
		sum += e
	}
	for i := range dst {
		dst[i] /= sum
	}
	return dst
}

// argmax returns the first index of the largest value.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
