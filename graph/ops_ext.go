package graph

import "github.com/rz-123/TinyAI-sub001/tensor"

// mulScalarOp scales every element by a fixed constant.
type mulScalarOp struct{ s float32 }

func (mulScalarOp) Arity() int { return 1 }

func (o *mulScalarOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return []*tensor.Tensor{tensor.MulScalar(inputs[0], o.s)}, nil
}

func (o *mulScalarOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return []*tensor.Tensor{tensor.MulScalar(outGrads[0], o.s)}, nil
}

// MulScalar records a multiplication by a constant.
func MulScalar(ctx *Context, a *Node, s float32) (*Node, error) {
	return Call1(ctx, &mulScalarOp{s: s}, a)
}

// addScalarOp adds a fixed constant to every element.
type addScalarOp struct{ s float32 }

func (addScalarOp) Arity() int { return 1 }

func (o *addScalarOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return []*tensor.Tensor{tensor.AddScalar(inputs[0], o.s)}, nil
}

func (o *addScalarOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	return []*tensor.Tensor{outGrads[0]}, nil
}

// AddScalar records an addition of a constant.
func AddScalar(ctx *Context, a *Node, s float32) (*Node, error) {
	return Call1(ctx, &addScalarOp{s: s}, a)
}

// sqrtOp: d/dx sqrt(x) = 1/(2*sqrt(x)).
type sqrtOp struct{ out *tensor.Tensor }

func (sqrtOp) Arity() int { return 1 }

func (o *sqrtOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.out = tensor.Sqrt(inputs[0])
	return []*tensor.Tensor{o.out}, nil
}

func (o *sqrtOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	twice := tensor.MulScalar(o.out, 2)
	denom, err := tensor.Reciprocal(twice)
	if err != nil {
		return nil, err
	}
	g, err := tensor.Mul(outGrads[0], denom)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// Sqrt records an elementwise square root.
func Sqrt(ctx *Context, a *Node) (*Node, error) { return Call1(ctx, &sqrtOp{}, a) }

// transposeOp applies a fixed axis permutation; backward applies the
// inverse permutation to the output gradient.
type transposeOp struct {
	perm    []int
	inverse []int
}

func (transposeOp) Arity() int { return 1 }

func (o *transposeOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	out, err := tensor.Transpose(inputs[0], o.perm)
	if err != nil {
		return nil, err
	}
	o.inverse = make([]int, len(o.perm))
	for i, p := range o.perm {
		o.inverse[p] = i
	}
	return []*tensor.Tensor{out}, nil
}

func (o *transposeOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	g, err := tensor.Transpose(outGrads[0], o.inverse)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// Transpose records a general axis permutation.
func Transpose(ctx *Context, a *Node, perm []int) (*Node, error) {
	return Call1(ctx, &transposeOp{perm: perm}, a)
}

// gatherOp looks up embedding rows; backward scatter-accumulates into a
// zero tensor shaped like the original weight matrix.
type gatherOp struct {
	indices     []int
	weightShape tensor.Shape
}

func (gatherOp) Arity() int { return 1 }

func (o *gatherOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.weightShape = inputs[0].Shape()
	out, err := tensor.Gather(inputs[0], o.indices)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *gatherOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	g, err := tensor.GatherBackward(outGrads[0], o.indices, o.weightShape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// Gather records an embedding-table row lookup.
func Gather(ctx *Context, weight *Node, indices []int) (*Node, error) {
	return Call1(ctx, &gatherOp{indices: indices}, weight)
}

// dropoutOp applies a precomputed keep-mask (already scaled by 1/keepProb)
// elementwise. The mask is generated fresh per forward call and is itself
// non-differentiable — it behaves exactly like mulOp with one input
// fixed, but is kept separate so the mask never needs a Node of its own.
type dropoutOp struct{ mask *tensor.Tensor }

func (dropoutOp) Arity() int { return 1 }

func (o *dropoutOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	out, err := tensor.Mul(inputs[0], o.mask)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *dropoutOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	g, err := tensor.Mul(outGrads[0], o.mask)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// Dropout records elementwise multiplication by a precomputed inverted-
// dropout mask (values are 0 or 1/keepProb).
func Dropout(ctx *Context, a *Node, mask *tensor.Tensor) (*Node, error) {
	return Call1(ctx, &dropoutOp{mask: mask}, a)
}
