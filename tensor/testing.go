package tensor

import "github.com/chewxy/math32"

// Default, strict, and loose floating-point comparison tolerances for use
// with AllClose.
const (
	ToleranceDefault = 1e-5
	ToleranceStrict  = 1e-7
	ToleranceLoose   = 1e-1
)

// AllClose reports whether a and b have the same shape and every element
// pair is within tol of each other.
func AllClose(a, b *Tensor, tol float32) bool {
	if !a.shape.Equal(b.shape) {
		return false
	}
	for i := range a.data {
		if math32.Abs(a.data[i]-b.data[i]) > tol {
			return false
		}
	}
	return true
}
