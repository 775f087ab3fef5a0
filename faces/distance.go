package faces

import "math"

// EuclideanDistance returns the L2 distance between two embeddings. ok is false
// when either vector is empty or their dimensions differ.
func EuclideanDistance(a, b Embedding) (dist float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), true
}

// ConfidencePercent maps a distance onto a 0-100 confidence figure.
func ConfidencePercent(distance float64) float64 {
	c := 100 * (1 - distance/2)
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
