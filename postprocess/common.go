package postprocess

import (
	"math"
)

// clamp restricts val to be within the range lo and hi
func clamp(val, lo, hi float32) float32 {

	if val < lo {
		return lo
	}

	if val > hi {
		return hi
	}

	return val
}

// argmax returns the index and value of the largest of the n scores found in
// data starting at offset and spaced stride apart.  On ties the lowest index
// wins.  NaN scores are skipped, when every score is NaN the result is class 0
// scoring -Inf.
func argmax(data []float32, offset, stride, n int) (int, float32) {

	maxIdx := 0
	maxScore := float32(math.Inf(-1))

	for c := 0; c < n; c++ {
		score := data[offset+c*stride]

		if score > maxScore {
			maxScore = score
			maxIdx = c
		}
	}

	return maxIdx, maxScore
}
