package graph

import "github.com/rz-123/TinyAI-sub001/tensor"

// addOp is elementwise addition with broadcasting (the operand with fewer
// elements is broadcast to the other's shape); backward reduces each
// output gradient back to its input's shape via SumTo.
type addOp struct{ aShape, bShape tensor.Shape }

func (addOp) Arity() int { return 2 }

func (o *addOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.aShape, o.bShape = inputs[0].Shape(), inputs[1].Shape()
	a, b := inputs[0], inputs[1]
	if !a.Shape().Equal(b.Shape()) {
		var err error
		if a.Shape().Size() >= b.Shape().Size() {
			b, err = tensor.BroadcastTo(b, a.Shape())
		} else {
			a, err = tensor.BroadcastTo(a, b.Shape())
		}
		if err != nil {
			return nil, err
		}
	}
	out, err := tensor.Add(a, b)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *addOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	da, err := tensor.SumTo(outGrads[0], o.aShape)
	if err != nil {
		return nil, err
	}
	db, err := tensor.SumTo(outGrads[0], o.bShape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{da, db}, nil
}

// Add records an elementwise addition.
func Add(ctx *Context, a, b *Node) (*Node, error) { return Call1(ctx, &addOp{}, a, b) }

// subOp is elementwise subtraction; operand shapes must be exactly equal
// (callers broadcast explicitly with BroadcastTo first).
type subOp struct{ aShape, bShape tensor.Shape }

func (subOp) Arity() int { return 2 }

func (o *subOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.aShape, o.bShape = inputs[0].Shape(), inputs[1].Shape()
	out, err := tensor.Sub(inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *subOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	da, err := tensor.SumTo(outGrads[0], o.aShape)
	if err != nil {
		return nil, err
	}
	negated := tensor.Neg(outGrads[0])
	db, err := tensor.SumTo(negated, o.bShape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{da, db}, nil
}

// Sub records an elementwise subtraction.
func Sub(ctx *Context, a, b *Node) (*Node, error) { return Call1(ctx, &subOp{}, a, b) }

// mulOp is elementwise multiplication of equal-shaped operands (callers
// broadcast explicitly with BroadcastTo first); dA = dOut*B, dB = dOut*A.
type mulOp struct{ a, b *tensor.Tensor }

func (mulOp) Arity() int { return 2 }

func (o *mulOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.a, o.b = inputs[0], inputs[1]
	out, err := tensor.Mul(inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *mulOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	gb, err := tensor.BroadcastReshape(o.b, outGrads[0].Shape())
	if err != nil {
		return nil, err
	}
	ga, err := tensor.BroadcastReshape(o.a, outGrads[0].Shape())
	if err != nil {
		return nil, err
	}
	daFull, err := tensor.Mul(outGrads[0], gb)
	if err != nil {
		return nil, err
	}
	dbFull, err := tensor.Mul(outGrads[0], ga)
	if err != nil {
		return nil, err
	}
	da, err := tensor.SumTo(daFull, o.a.Shape())
	if err != nil {
		return nil, err
	}
	db, err := tensor.SumTo(dbFull, o.b.Shape())
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{da, db}, nil
}

// Mul records an elementwise multiplication.
func Mul(ctx *Context, a, b *Node) (*Node, error) { return Call1(ctx, &mulOp{}, a, b) }

// divOp is elementwise division; dA = dOut/B, dB = -dOut*A/B^2.
type divOp struct{ a, b *tensor.Tensor }

func (divOp) Arity() int { return 2 }

func (o *divOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.a, o.b = inputs[0], inputs[1]
	out, err := tensor.Div(inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *divOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	gb, err := tensor.BroadcastReshape(o.b, outGrads[0].Shape())
	if err != nil {
		return nil, err
	}
	ga, err := tensor.BroadcastReshape(o.a, outGrads[0].Shape())
	if err != nil {
		return nil, err
	}
	daFull, err := tensor.Div(outGrads[0], gb)
	if err != nil {
		return nil, err
	}
	bSquared := tensor.Square(gb)
	numerator, err := tensor.Mul(outGrads[0], ga)
	if err != nil {
		return nil, err
	}
	dbFullUnsigned, err := tensor.Div(numerator, bSquared)
	if err != nil {
		return nil, err
	}
	dbFull := tensor.Neg(dbFullUnsigned)
	da, err := tensor.SumTo(daFull, o.a.Shape())
	if err != nil {
		return nil, err
	}
	db, err := tensor.SumTo(dbFull, o.b.Shape())
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{da, db}, nil
}

// Div records an elementwise division.
func Div(ctx *Context, a, b *Node) (*Node, error) { return Call1(ctx, &divOp{}, a, b) }

// matMulOp is batched/2D matrix multiplication; dA = dOut @ B^T, dB = A^T @ dOut.
type matMulOp struct{ a, b *tensor.Tensor }

func (matMulOp) Arity() int { return 2 }

func (o *matMulOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.a, o.b = inputs[0], inputs[1]
	out, err := tensor.MatMul(inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *matMulOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	bT, err := transposeLast2(o.b)
	if err != nil {
		return nil, err
	}
	aT, err := transposeLast2(o.a)
	if err != nil {
		return nil, err
	}
	daFull, err := tensor.MatMul(outGrads[0], bT)
	if err != nil {
		return nil, err
	}
	dbFull, err := tensor.MatMul(aT, outGrads[0])
	if err != nil {
		return nil, err
	}
	da, err := tensor.SumTo(daFull, o.a.Shape())
	if err != nil {
		return nil, err
	}
	db, err := tensor.SumTo(dbFull, o.b.Shape())
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{da, db}, nil
}

func transposeLast2(t *tensor.Tensor) (*tensor.Tensor, error) {
	if t.Rank() == 2 {
		return tensor.Transpose2D(t)
	}
	perm := make([]int, t.Rank())
	for i := range perm {
		perm[i] = i
	}
	perm[len(perm)-1], perm[len(perm)-2] = perm[len(perm)-2], perm[len(perm)-1]
	return tensor.Transpose(t, perm)
}

// MatMul records a matrix multiplication.
func MatMul(ctx *Context, a, b *Node) (*Node, error) { return Call1(ctx, &matMulOp{}, a, b) }

// Reshape records a shape change; the new shape is supplied at call time.
func Reshape(ctx *Context, a *Node, newShape tensor.Shape) (*Node, error) {
	op := &reshapeShapedOp{newShape: newShape}
	return Call1(ctx, op, a)
}

type reshapeShapedOp struct {
	newShape  tensor.Shape
	origShape tensor.Shape
}

func (reshapeShapedOp) Arity() int { return 1 }

func (o *reshapeShapedOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.origShape = inputs[0].Shape()
	out, err := tensor.Reshape(inputs[0], o.newShape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *reshapeShapedOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	g, err := tensor.Reshape(outGrads[0], o.origShape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// broadcastToOp expands a tensor to target during forward, reducing back
// via SumTo during backward — the dual operation to SumTo.
type broadcastToOp struct {
	target    tensor.Shape
	origShape tensor.Shape
}

func (broadcastToOp) Arity() int { return 1 }

func (o *broadcastToOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.origShape = inputs[0].Shape()
	out, err := tensor.BroadcastTo(inputs[0], o.target)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *broadcastToOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	g, err := tensor.SumTo(outGrads[0], o.origShape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// BroadcastTo records a broadcast to target.
func BroadcastTo(ctx *Context, a *Node, target tensor.Shape) (*Node, error) {
	return Call1(ctx, &broadcastToOp{target: target}, a)
}

// sumToOp reduces a tensor to target during forward by summation,
// broadcasting the gradient back out during backward.
type sumToOp struct {
	target    tensor.Shape
	origShape tensor.Shape
}

func (sumToOp) Arity() int { return 1 }

func (o *sumToOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.origShape = inputs[0].Shape()
	out, err := tensor.SumTo(inputs[0], o.target)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *sumToOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	g, err := tensor.BroadcastTo(outGrads[0], o.origShape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// SumTo records a sum-reduction to target.
func SumTo(ctx *Context, a *Node, target tensor.Shape) (*Node, error) {
	return Call1(ctx, &sumToOp{target: target}, a)
}

// sumAxisOp reduces one axis via summation.
type sumAxisOp struct {
	axis      int
	origShape tensor.Shape
}

func (sumAxisOp) Arity() int { return 1 }

func (o *sumAxisOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.origShape = inputs[0].Shape()
	out, err := tensor.SumAxis(inputs[0], o.axis)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *sumAxisOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	g, err := tensor.BroadcastReshape(outGrads[0], o.origShape)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// SumAxis records a sum along a single axis.
func SumAxis(ctx *Context, a *Node, axis int) (*Node, error) {
	return Call1(ctx, &sumAxisOp{axis: axis}, a)
}

// tanhOp: d/dx tanh(x) = 1 - tanh(x)^2.
type tanhOp struct{ out *tensor.Tensor }

func (tanhOp) Arity() int { return 1 }

func (o *tanhOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.out = tensor.Tanh(inputs[0])
	return []*tensor.Tensor{o.out}, nil
}

func (o *tanhOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	one := tensor.Ones(o.out.Shape())
	derivative, err := tensor.Sub(one, tensor.Square(o.out))
	if err != nil {
		return nil, err
	}
	g, err := tensor.Mul(outGrads[0], derivative)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// Tanh records an elementwise hyperbolic tangent.
func Tanh(ctx *Context, a *Node) (*Node, error) { return Call1(ctx, &tanhOp{}, a) }

// sigmoidOp: d/dx sigmoid(x) = sigmoid(x) * (1 - sigmoid(x)).
type sigmoidOp struct{ out *tensor.Tensor }

func (sigmoidOp) Arity() int { return 1 }

func (o *sigmoidOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.out = tensor.Sigmoid(inputs[0])
	return []*tensor.Tensor{o.out}, nil
}

func (o *sigmoidOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	one := tensor.Ones(o.out.Shape())
	oneMinus, err := tensor.Sub(one, o.out)
	if err != nil {
		return nil, err
	}
	derivative, err := tensor.Mul(o.out, oneMinus)
	if err != nil {
		return nil, err
	}
	g, err := tensor.Mul(outGrads[0], derivative)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// Sigmoid records an elementwise logistic sigmoid.
func Sigmoid(ctx *Context, a *Node) (*Node, error) { return Call1(ctx, &sigmoidOp{}, a) }

// reluOp: gradient passes where input > 0, else zero.
type reluOp struct{ mask *tensor.Tensor }

func (reluOp) Arity() int { return 1 }

func (o *reluOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	zero := tensor.Zeros(inputs[0].Shape())
	mask, err := tensor.Gt(inputs[0], zero)
	if err != nil {
		return nil, err
	}
	o.mask = mask
	out, err := tensor.Mul(inputs[0], mask)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *reluOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	g, err := tensor.Mul(outGrads[0], o.mask)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// ReLU records an elementwise rectified-linear unit.
func ReLU(ctx *Context, a *Node) (*Node, error) { return Call1(ctx, &reluOp{}, a) }

// expOp: d/dx exp(x) = exp(x).
type expOp struct{ out *tensor.Tensor }

func (expOp) Arity() int { return 1 }

func (o *expOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.out = tensor.Exp(inputs[0])
	return []*tensor.Tensor{o.out}, nil
}

func (o *expOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	g, err := tensor.Mul(outGrads[0], o.out)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// Exp records an elementwise exponential.
func Exp(ctx *Context, a *Node) (*Node, error) { return Call1(ctx, &expOp{}, a) }

// logOp: d/dx log(x) = 1/x.
type logOp struct{ in *tensor.Tensor }

func (logOp) Arity() int { return 1 }

func (o *logOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	o.in = inputs[0]
	out, err := tensor.Log(inputs[0])
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *logOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	recip, err := tensor.Reciprocal(o.in)
	if err != nil {
		return nil, err
	}
	g, err := tensor.Mul(outGrads[0], recip)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// Log records an elementwise natural logarithm.
func Log(ctx *Context, a *Node) (*Node, error) { return Call1(ctx, &logOp{}, a) }

// softmaxOp: Jacobian-vector product s * (dOut - sum(dOut*s, axis)).
type softmaxOp struct {
	axis int
	out  *tensor.Tensor
}

func (softmaxOp) Arity() int { return 1 }

func (o *softmaxOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	out, err := tensor.Softmax(inputs[0], o.axis)
	if err != nil {
		return nil, err
	}
	o.out = out
	return []*tensor.Tensor{out}, nil
}

func (o *softmaxOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	weighted, err := tensor.Mul(outGrads[0], o.out)
	if err != nil {
		return nil, err
	}
	sum, err := tensor.SumAxis(weighted, o.axis)
	if err != nil {
		return nil, err
	}
	sumBroadcast, err := tensor.BroadcastReshape(sum, o.out.Shape())
	if err != nil {
		return nil, err
	}
	diff, err := tensor.Sub(outGrads[0], sumBroadcast)
	if err != nil {
		return nil, err
	}
	g, err := tensor.Mul(o.out, diff)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{g}, nil
}

// Softmax records a softmax normalization along axis.
func Softmax(ctx *Context, a *Node, axis int) (*Node, error) {
	return Call1(ctx, &softmaxOp{axis: axis}, a)
}
