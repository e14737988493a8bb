// Package initializers provides the parameter-initialization schemes
// used by nn/layers: constant fills, uniform/normal sampling, and the
// fan-in/fan-out-scaled schemes (Xavier/Glorot, Kaiming/He, orthogonal)
// that keep activation variance stable across depth.
package initializers

import (
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/rz-123/TinyAI-sub001/errs"
	"github.com/rz-123/TinyAI-sub001/tensor"
	"gonum.org/v1/gonum/mat"
)

// Initializer produces a tensor of the given shape from an explicit,
// caller-owned RNG source.
type Initializer func(shape tensor.Shape, rng *rand.Rand) (*tensor.Tensor, error)

// Zeros fills with 0.
func Zeros(shape tensor.Shape, _ *rand.Rand) (*tensor.Tensor, error) {
	return tensor.Zeros(shape), nil
}

// Ones fills with 1.
func Ones(shape tensor.Shape, _ *rand.Rand) (*tensor.Tensor, error) {
	return tensor.Ones(shape), nil
}

// Constant returns an Initializer that fills every element with value.
func Constant(value float32) Initializer {
	return func(shape tensor.Shape, _ *rand.Rand) (*tensor.Tensor, error) {
		return tensor.Fill(shape, value), nil
	}
}

// Uniform returns an Initializer sampling U(min, max).
func Uniform(min, max float32) Initializer {
	return func(shape tensor.Shape, rng *rand.Rand) (*tensor.Tensor, error) {
		return tensor.RandomUniform(min, max, shape, rng), nil
	}
}

// Normal returns an Initializer sampling N(mean, std^2).
func Normal(mean, std float32) Initializer {
	return func(shape tensor.Shape, rng *rand.Rand) (*tensor.Tensor, error) {
		return tensor.RandomNormal(mean, std, shape, rng), nil
	}
}

// fanInOut returns (fan_in, fan_out) for a weight tensor, following the
// convention that the last axis is the input dimension and the
// second-to-last is the output dimension (matching Linear's weight
// layout), with any leading axes treated as receptive-field size.
func fanInOut(shape tensor.Shape) (int, int, error) {
	if shape.Rank() < 2 {
		return 0, 0, errs.Newf(errs.Unsupported, "fanInOut", "shape %s has rank < 2", shape)
	}
	receptiveField := 1
	for _, d := range shape[:shape.Rank()-2] {
		receptiveField *= d
	}
	fanOut := shape[shape.Rank()-2] * receptiveField
	fanIn := shape[shape.Rank()-1] * receptiveField
	return fanIn, fanOut, nil
}

// Gain returns the recommended gain for a nonlinearity name, matching
// the values used by Xavier/Kaiming initialization in the wild.
func Gain(nonlinearity string) float32 {
	switch nonlinearity {
	case "relu":
		return math32.Sqrt(2)
	case "tanh":
		return float32(5.0 / 3.0)
	default:
		return 1
	}
}

// XavierUniform samples U(-a, a) with a = gain * sqrt(6/(fan_in+fan_out)).
func XavierUniform(gain float32) Initializer {
	return func(shape tensor.Shape, rng *rand.Rand) (*tensor.Tensor, error) {
		fanIn, fanOut, err := fanInOut(shape)
		if err != nil {
			return nil, err
		}
		a := gain * math32.Sqrt(6/float32(fanIn+fanOut))
		return tensor.RandomUniform(-a, a, shape, rng), nil
	}
}

// XavierNormal samples N(0, std^2) with std = gain * sqrt(2/(fan_in+fan_out)).
func XavierNormal(gain float32) Initializer {
	return func(shape tensor.Shape, rng *rand.Rand) (*tensor.Tensor, error) {
		fanIn, fanOut, err := fanInOut(shape)
		if err != nil {
			return nil, err
		}
		std := gain * math32.Sqrt(2/float32(fanIn+fanOut))
		return tensor.RandomNormal(0, std, shape, rng), nil
	}
}

// KaimingUniform samples U(-bound, bound) with bound = gain*sqrt(3/fan_in).
func KaimingUniform(gain float32) Initializer {
	return func(shape tensor.Shape, rng *rand.Rand) (*tensor.Tensor, error) {
		fanIn, _, err := fanInOut(shape)
		if err != nil {
			return nil, err
		}
		bound := gain * math32.Sqrt(3/float32(fanIn))
		return tensor.RandomUniform(-bound, bound, shape, rng), nil
	}
}

// KaimingNormal samples N(0, std^2) with std = gain/sqrt(fan_in).
func KaimingNormal(gain float32) Initializer {
	return func(shape tensor.Shape, rng *rand.Rand) (*tensor.Tensor, error) {
		fanIn, _, err := fanInOut(shape)
		if err != nil {
			return nil, err
		}
		std := gain / math32.Sqrt(float32(fanIn))
		return tensor.RandomNormal(0, std, shape, rng), nil
	}
}

// Orthogonal draws a random matrix and replaces it with the orthogonal
// factor of its SVD, scaled by gain. Only defined for rank-2 shapes;
// falls back to XavierUniform for any other rank (the common case of a
// single non-square receptive-field conv kernel, where "orthogonal"
// is ill-defined without flattening conventions this package does not
// impose).
func Orthogonal(gain float32) Initializer {
	return func(shape tensor.Shape, rng *rand.Rand) (*tensor.Tensor, error) {
		if shape.Rank() != 2 {
			return XavierUniform(gain)(shape, rng)
		}
		rows, cols := shape[0], shape[1]
		raw := tensor.RandomNormal(0, 1, shape, rng)

		data := make([]float64, rows*cols)
		for i, v := range raw.Data() {
			data[i] = float64(v)
		}
		m := mat.NewDense(rows, cols, data)

		var svd mat.SVD
		if !svd.Factorize(m, mat.SVDThin) {
			return XavierUniform(gain)(shape, rng)
		}

		var u, v mat.Dense
		svd.UTo(&u)
		svd.VTo(&v)

		var q mat.Dense
		if rows >= cols {
			q = u
		} else {
			q.Clone(v.T())
		}

		out := make([]float32, rows*cols)
		qr, qc := q.Dims()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if r < qr && c < qc {
					out[r*cols+c] = float32(q.At(r, c)) * gain
				}
			}
		}
		return tensor.FromArray(out, shape)
	}
}
