package vectorx

import "math"

// NormEpsilon guards L2 normalization against division by zero.
const NormEpsilon = 1e-8

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize scales v in place to unit length and returns it.
func Normalize(v []float32) []float32 {
	n := Norm(v) + NormEpsilon
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
	return v
}

// Mean returns the element-wise mean of vs. All vectors must share a
// length; nil is returned for an empty input or ragged vectors.
func Mean(vs [][]float32) []float32 {
	if len(vs) == 0 {
		return nil
	}
	dim := len(vs[0])
	acc := make([]float64, dim)
	for _, v := range vs {
		if len(v) != dim {
			return nil
		}
		for i, x := range v {
			acc[i] += float64(x)
		}
	}

	out := make([]float32, dim)
	k := float64(len(vs))
	for i, s := range acc {
		out[i] = float32(s / k)
	}
	return out
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length, empty vectors and zero vectors all score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
