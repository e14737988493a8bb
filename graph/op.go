package graph

import "github.com/rz-123/TinyAI-sub001/tensor"

// VariadicArity marks an Op that accepts any number of inputs.
const VariadicArity = -1

// Op is a single recorded forward step together with its backward
// closure. Op instances are single-use: a fresh Op is constructed for
// each Call and captures whatever input values or shapes its Backward
// needs.
type Op interface {
	// Arity returns the exact number of inputs this Op requires, or
	// VariadicArity if it accepts any number.
	Arity() int

	// Forward runs the pure tensor computation, producing one tensor per
	// logical output.
	Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error)

	// Backward returns one gradient tensor per input, in input order,
	// given one gradient tensor per output, in output order. A nil entry
	// in the result means "not differentiable with respect to this input".
	Backward(outputGrads []*tensor.Tensor) ([]*tensor.Tensor, error)
}
