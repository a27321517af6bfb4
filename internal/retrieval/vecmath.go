package retrieval

import "math"

// Epsilon is the threshold below which a vector's norm is treated as zero
// for normalization purposes (spec §3, §4.D, §4.H).
const Epsilon = 1e-9

// Norm returns the L2 norm of v.
func Norm(v Embedding) float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	return math.Sqrt(sumSquares)
}

// Normalize returns a unit-norm copy of v. If ‖v‖₂ < Epsilon it returns
// (nil, false) — callers must decide how to degrade (spec's numerical
// fallback rules in §4.D and §4.H).
func Normalize(v Embedding) (Embedding, bool) {
	n := Norm(v)
	if n < Epsilon {
		return nil, false
	}
	out := make(Embedding, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, true
}

// Dot returns the dot product of a and b. Callers must ensure equal length.
func Dot(a, b Embedding) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Add returns a+b element-wise, truncated to the shorter length.
func Add(a, b Embedding) Embedding {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make(Embedding, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] + b[i]
	}
	return out
}

// Scale returns v scaled by alpha.
func Scale(v Embedding, alpha float64) Embedding {
	out := make(Embedding, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * alpha)
	}
	return out
}
