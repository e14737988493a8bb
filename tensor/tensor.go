// Package tensor implements the contiguous float32 n-dimensional array
// that underlies the autograd graph: elementwise math, reductions,
// reshape/broadcast, matmul, and slicing/gather/scatter.
//
// A Tensor's shape is fixed at construction; its buffer is mutable only
// through the explicit setters (Set, SetBlock, SetRows, SetCols, AddAt,
// AddTo). Every other operation returns a freshly allocated Tensor —
// there is no hidden aliasing across distinct Tensor values.
package tensor

import (
	"math/rand"

	"github.com/rz-123/TinyAI-sub001/errs"
)

// Tensor is a contiguous row-major (last axis varies fastest) float32 array.
type Tensor struct {
	shape Shape
	data  []float32
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Data returns the tensor's backing buffer. Callers must not retain and
// mutate it outside of the explicit in-place setters below, or autograd
// nodes whose value is this tensor will observe stale gradients.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Rank is a shorthand for t.Shape().Rank().
func (t *Tensor) Rank() int {
	return t.shape.Rank()
}

// At returns the element at a flat row-major index.
func (t *Tensor) At(flatIndex int) float32 {
	return t.data[flatIndex]
}

// newTensor wraps data as a Tensor of the given shape without copying. Internal
// constructor; callers use the factory functions below, which validate.
func newTensor(shape Shape, data []float32) *Tensor {
	return &Tensor{shape: shape.Clone(), data: data}
}

// Clone returns a deep copy of t.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return newTensor(t.shape, data)
}

// Zeros creates a tensor of the given shape filled with 0.
func Zeros(shape Shape) *Tensor {
	return newTensor(shape, make([]float32, shape.Size()))
}

// Ones creates a tensor of the given shape filled with 1.
func Ones(shape Shape) *Tensor {
	return Fill(shape, 1)
}

// Fill creates a tensor of the given shape with every element set to value.
func Fill(shape Shape, value float32) *Tensor {
	data := make([]float32, shape.Size())
	for i := range data {
		data[i] = value
	}
	return newTensor(shape, data)
}

// Eye places 1s on the main diagonal of the trailing two dims and 0
// elsewhere, batched over any leading dims.
func Eye(shape Shape) (*Tensor, error) {
	if shape.Rank() < 2 {
		return nil, errs.New(errs.Unsupported, "Eye", "shape must have rank >= 2")
	}
	rows, cols := shape[shape.Rank()-2], shape[shape.Rank()-1]
	out := Zeros(shape)
	batch := shape.Size() / (rows * cols)
	for b := 0; b < batch; b++ {
		base := b * rows * cols
		for i := 0; i < rows && i < cols; i++ {
			out.data[base+i*cols+i] = 1
		}
	}
	return out, nil
}

// Linspace returns n evenly spaced values in [min, max] as a rank-1 tensor.
func Linspace(min, max float32, n int) (*Tensor, error) {
	if n <= 0 {
		return nil, errs.New(errs.Unsupported, "Linspace", "n must be > 0")
	}
	data := make([]float32, n)
	if n == 1 {
		data[0] = min
		return newTensor(NewShape(1), data), nil
	}
	step := (max - min) / float32(n-1)
	for i := 0; i < n; i++ {
		data[i] = min + step*float32(i)
	}
	return newTensor(NewShape(n), data), nil
}

// FromArray builds a tensor from values in row-major order, failing if the
// value count does not match shape.Size().
func FromArray(values []float32, shape Shape) (*Tensor, error) {
	if len(values) != shape.Size() {
		return nil, errs.Newf(errs.ShapeMismatch, "FromArray", "got %d values for shape %s (size %d)", len(values), shape, shape.Size())
	}
	data := make([]float32, len(values))
	copy(data, values)
	return newTensor(shape, data), nil
}

// RandomUniform fills a tensor of shape with values uniform in [min, max).
// rng is an explicit, caller-owned source: there is no hidden global seed.
func RandomUniform(min, max float32, shape Shape, rng *rand.Rand) *Tensor {
	data := make([]float32, shape.Size())
	span := max - min
	for i := range data {
		data[i] = min + span*rng.Float32()
	}
	return newTensor(shape, data)
}

// RandomNormal fills a tensor of shape with values from N(mean, std^2).
// rng is an explicit, caller-owned source: there is no hidden global seed.
func RandomNormal(mean, std float32, shape Shape, rng *rand.Rand) *Tensor {
	data := make([]float32, shape.Size())
	for i := range data {
		data[i] = mean + std*float32(rng.NormFloat64())
	}
	return newTensor(shape, data)
}

// NewRNG is a convenience constructor for an explicit, seeded source,
// since factories never fall back to a process-global RNG.
func NewRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Set overwrites the element at a flat row-major index in place.
func (t *Tensor) Set(flatIndex int, value float32) {
	t.data[flatIndex] = value
}
