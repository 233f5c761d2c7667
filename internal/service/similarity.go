package service

import "math"

// CosineSimilarity returns the directional closeness of two vectors in the
// range [-1, 1]. Mismatched lengths and zero-magnitude vectors return 0
// instead of failing, so un-vectorized or corrupt items never crash a
// retrieval pass.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
