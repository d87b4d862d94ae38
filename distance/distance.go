// Package distance provides the vector distance kernels used by the index
// backends. All kernels assume both vectors have the same length; shape
// validation happens at the API boundary.
package distance

import "math"

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared Euclidean distance between two vectors.
// Search paths rank on squared distances and defer the square root until
// results are reported.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// L2 calculates the Euclidean distance between two vectors.
func L2(a, b []float32) float32 {
	return Sqrt(SquaredL2(a, b))
}

// Sqrt returns the square root of x as float32.
func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
