package sparse

import "math"

// Diag is a diagonal matrix stored as its diagonal.
type Diag []float64

// MulVec computes dst = D * v.
func (d Diag) MulVec(dst, v []float64) {
	for i := range d {
		dst[i] = d[i] * v[i]
	}
}

// Dot returns the inner product of a and b.
func Dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm2 returns the Euclidean norm of v.
func Norm2(v []float64) float64 {
	return math.Sqrt(Dot(v, v))
}

// Axpy computes dst = dst + alpha*x.
func Axpy(dst []float64, alpha float64, x []float64) {
	for i := range dst {
		dst[i] += alpha * x[i]
	}
}
