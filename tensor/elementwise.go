package tensor

import (
	"github.com/chewxy/math32"
	"github.com/rz-123/TinyAI-sub001/errs"
)

const divZeroFloor = 1e-7

func sameShapeOp(op string, a, b *Tensor) error {
	if a == nil || b == nil {
		return errs.New(errs.NullInput, op, "operand is nil")
	}
	if !a.shape.Equal(b.shape) {
		return errs.Newf(errs.ShapeMismatch, op, "operand shapes %s and %s differ", a.shape, b.shape)
	}
	return nil
}

func binaryElementwise(op string, a, b *Tensor, f func(x, y float32) (float32, error)) (*Tensor, error) {
	if err := sameShapeOp(op, a, b); err != nil {
		return nil, err
	}
	out := make([]float32, len(a.data))
	for i := range a.data {
		v, err := f(a.data[i], b.data[i])
		if err != nil {
			return nil, errs.New(errs.ArithmeticError, op, err.Error())
		}
		out[i] = v
	}
	return newTensor(a.shape, out), nil
}

// Add returns a+b elementwise. Shapes must be exactly equal.
func Add(a, b *Tensor) (*Tensor, error) {
	return binaryElementwise("Add", a, b, func(x, y float32) (float32, error) { return x + y, nil })
}

// Sub returns a-b elementwise. Shapes must be exactly equal.
func Sub(a, b *Tensor) (*Tensor, error) {
	return binaryElementwise("Sub", a, b, func(x, y float32) (float32, error) { return x - y, nil })
}

// Mul returns a*b elementwise. Shapes must be exactly equal.
func Mul(a, b *Tensor) (*Tensor, error) {
	return binaryElementwise("Mul", a, b, func(x, y float32) (float32, error) { return x * y, nil })
}

// Div returns a/b elementwise. Fails with ArithmeticError if any |b[i]| < 1e-7.
func Div(a, b *Tensor) (*Tensor, error) {
	if err := sameShapeOp("Div", a, b); err != nil {
		return nil, err
	}
	out := make([]float32, len(a.data))
	for i := range a.data {
		if math32.Abs(b.data[i]) < divZeroFloor {
			return nil, errs.Newf(errs.ArithmeticError, "Div", "divisor magnitude %v below floor at index %d", b.data[i], i)
		}
		out[i] = a.data[i] / b.data[i]
	}
	return newTensor(a.shape, out), nil
}

func unaryElementwise(t *Tensor, f func(float32) float32) *Tensor {
	out := make([]float32, len(t.data))
	for i, v := range t.data {
		out[i] = f(v)
	}
	return newTensor(t.shape, out)
}

// Neg returns -t elementwise.
func Neg(t *Tensor) *Tensor { return unaryElementwise(t, func(x float32) float32 { return -x }) }

// Abs returns |t| elementwise.
func Abs(t *Tensor) *Tensor { return unaryElementwise(t, math32.Abs) }

// Square returns t*t elementwise.
func Square(t *Tensor) *Tensor {
	return unaryElementwise(t, func(x float32) float32 { return x * x })
}

// Sqrt returns sqrt(t) elementwise.
func Sqrt(t *Tensor) *Tensor { return unaryElementwise(t, math32.Sqrt) }

// Exp returns e^t elementwise.
func Exp(t *Tensor) *Tensor { return unaryElementwise(t, math32.Exp) }

// Log returns ln(t) elementwise, failing if any element is <= 0.
func Log(t *Tensor) (*Tensor, error) {
	out := make([]float32, len(t.data))
	for i, v := range t.data {
		if v <= 0 {
			return nil, errs.Newf(errs.ArithmeticError, "Log", "non-positive input %v at index %d", v, i)
		}
		out[i] = math32.Log(v)
	}
	return newTensor(t.shape, out), nil
}

// Sin returns sin(t) elementwise.
func Sin(t *Tensor) *Tensor { return unaryElementwise(t, math32.Sin) }

// Cos returns cos(t) elementwise.
func Cos(t *Tensor) *Tensor { return unaryElementwise(t, math32.Cos) }

// Tanh returns tanh(t) elementwise.
func Tanh(t *Tensor) *Tensor { return unaryElementwise(t, math32.Tanh) }

// Sigmoid returns 1/(1+e^-t) elementwise.
func Sigmoid(t *Tensor) *Tensor {
	return unaryElementwise(t, func(x float32) float32 { return 1 / (1 + math32.Exp(-x)) })
}

// Reciprocal returns 1/t elementwise, failing if any |element| < 1e-7.
func Reciprocal(t *Tensor) (*Tensor, error) {
	out := make([]float32, len(t.data))
	for i, v := range t.data {
		if math32.Abs(v) < divZeroFloor {
			return nil, errs.Newf(errs.ArithmeticError, "Reciprocal", "magnitude %v below floor at index %d", v, i)
		}
		out[i] = 1 / v
	}
	return newTensor(t.shape, out), nil
}

// Clip clamps every element into [min, max].
func Clip(t *Tensor, min, max float32) *Tensor {
	return unaryElementwise(t, func(x float32) float32 {
		if x < min {
			return min
		}
		if x > max {
			return max
		}
		return x
	})
}

// AddScalar adds a scalar to every element.
func AddScalar(t *Tensor, s float32) *Tensor {
	return unaryElementwise(t, func(x float32) float32 { return x + s })
}

// MulScalar multiplies every element by a scalar.
func MulScalar(t *Tensor, s float32) *Tensor {
	return unaryElementwise(t, func(x float32) float32 { return x * s })
}

// DivScalar divides every element by a scalar.
func DivScalar(t *Tensor, s float32) (*Tensor, error) {
	if math32.Abs(s) < divZeroFloor {
		return nil, errs.Newf(errs.ArithmeticError, "DivScalar", "divisor magnitude %v below floor", s)
	}
	return unaryElementwise(t, func(x float32) float32 { return x / s }), nil
}

// Eq returns 1.0/0.0 elementwise equality. Shapes must be exactly equal.
func Eq(a, b *Tensor) (*Tensor, error) {
	return binaryElementwise("Eq", a, b, func(x, y float32) (float32, error) {
		if x == y {
			return 1, nil
		}
		return 0, nil
	})
}

// Gt returns 1.0/0.0 elementwise a>b. Shapes must be exactly equal.
func Gt(a, b *Tensor) (*Tensor, error) {
	return binaryElementwise("Gt", a, b, func(x, y float32) (float32, error) {
		if x > y {
			return 1, nil
		}
		return 0, nil
	})
}

// Lt returns 1.0/0.0 elementwise a<b. Shapes must be exactly equal.
func Lt(a, b *Tensor) (*Tensor, error) {
	return binaryElementwise("Lt", a, b, func(x, y float32) (float32, error) {
		if x < y {
			return 1, nil
		}
		return 0, nil
	})
}

// IsAllGreater reports whether every element of a is greater than the
// corresponding element of b.
func IsAllGreater(a, b *Tensor) (bool, error) {
	if err := sameShapeOp("IsAllGreater", a, b); err != nil {
		return false, err
	}
	for i := range a.data {
		if !(a.data[i] > b.data[i]) {
			return false, nil
		}
	}
	return true, nil
}
