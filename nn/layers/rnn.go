package layers

import (
	"math/rand"

	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/nn/initializers"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

// SimpleRNN is a single-layer Elman cell: h' = activation(x @ Wxh^T + h @ Whh^T + b).
// The hidden state is kept across calls to Forward until ResetState is
// called, so a caller drives a sequence with one Forward call per step.
type SimpleRNN struct {
	*nn.Module
	InputSize, HiddenSize int
	Activation            func(ctx *graph.Context, a *graph.Node) (*graph.Node, error)
	hidden                *graph.Node
}

// NewSimpleRNN builds a SimpleRNN cell. activation is "tanh" or "relu";
// any other value defaults to tanh.
func NewSimpleRNN(inputSize, hiddenSize int, activation string, rng *rand.Rand) (*SimpleRNN, error) {
	m := nn.New("SimpleRNN")
	wxh, err := initializers.XavierUniform(1)(tensor.NewShape(hiddenSize, inputSize), rng)
	if err != nil {
		return nil, err
	}
	whh, err := initializers.XavierUniform(1)(tensor.NewShape(hiddenSize, hiddenSize), rng)
	if err != nil {
		return nil, err
	}
	if _, err := m.RegisterParameter("w_xh", wxh); err != nil {
		return nil, err
	}
	if _, err := m.RegisterParameter("w_hh", whh); err != nil {
		return nil, err
	}
	if _, err := m.RegisterParameter("bias", tensor.Zeros(tensor.NewShape(hiddenSize))); err != nil {
		return nil, err
	}
	act := graph.Tanh
	if activation == "relu" {
		act = graph.ReLU
	}
	return &SimpleRNN{Module: m, InputSize: inputSize, HiddenSize: hiddenSize, Activation: act}, nil
}

// ResetState clears the carried hidden state; the next Forward starts
// from zeros.
func (r *SimpleRNN) ResetState() { r.hidden = nil }

// Forward consumes one timestep x, shape [batch, InputSize], returning
// the new hidden state, shape [batch, HiddenSize].
func (r *SimpleRNN) Forward(x *graph.Node) (*graph.Node, error) {
	ctx := r.Context()
	wxh, _ := r.Parameter("w_xh")
	whh, _ := r.Parameter("w_hh")
	bias, _ := r.Parameter("bias")
	batch := x.Value().Shape()[0]

	if r.hidden == nil {
		r.hidden = graph.NewLeaf(tensor.Zeros(tensor.NewShape(batch, r.HiddenSize)), false, "h0")
	}

	wxhT, err := graph.Transpose(ctx, wxh, []int{1, 0})
	if err != nil {
		return nil, err
	}
	whhT, err := graph.Transpose(ctx, whh, []int{1, 0})
	if err != nil {
		return nil, err
	}
	fromX, err := graph.MatMul(ctx, x, wxhT)
	if err != nil {
		return nil, err
	}
	fromH, err := graph.MatMul(ctx, r.hidden, whhT)
	if err != nil {
		return nil, err
	}
	sum, err := graph.Add(ctx, fromX, fromH)
	if err != nil {
		return nil, err
	}
	biasB, err := graph.BroadcastTo(ctx, bias, sum.Value().Shape())
	if err != nil {
		return nil, err
	}
	preAct, err := graph.Add(ctx, sum, biasB)
	if err != nil {
		return nil, err
	}
	next, err := r.Activation(ctx, preAct)
	if err != nil {
		return nil, err
	}
	r.hidden = next
	return next, nil
}

// TruncateHistory caps backpropagation-through-time depth by unchaining
// the carried hidden state's tape, keeping its current value but
// detaching it from every step before this one.
func (r *SimpleRNN) TruncateHistory() {
	if r.hidden != nil {
		r.hidden.UnchainBackward()
	}
}

// LSTM is a single-layer long short-term memory cell with the standard
// four-gate formulation (input, forget, cell/candidate, output).
type LSTM struct {
	*nn.Module
	InputSize, HiddenSize int
	hidden, cell          *graph.Node
}

func lstmGate(m *nn.Module, name string, inputSize, hiddenSize int, rng *rand.Rand) error {
	w, err := initializers.XavierUniform(1)(tensor.NewShape(hiddenSize, inputSize+hiddenSize), rng)
	if err != nil {
		return err
	}
	if _, err := m.RegisterParameter("w_"+name, w); err != nil {
		return err
	}
	return errOrNil(m.RegisterParameter("b_"+name, tensor.Zeros(tensor.NewShape(hiddenSize))))
}

func errOrNil(_ *graph.Node, err error) error { return err }

// NewLSTM builds an LSTM cell with Xavier-uniform gate weights.
func NewLSTM(inputSize, hiddenSize int, rng *rand.Rand) (*LSTM, error) {
	m := nn.New("LSTM")
	for _, gate := range []string{"i", "f", "g", "o"} {
		if err := lstmGate(m, gate, inputSize, hiddenSize, rng); err != nil {
			return nil, err
		}
	}
	return &LSTM{Module: m, InputSize: inputSize, HiddenSize: hiddenSize}, nil
}

// ResetState clears the carried hidden and cell state.
func (l *LSTM) ResetState() { l.hidden, l.cell = nil, nil }

func (l *LSTM) gate(ctx *graph.Context, name string, concat *graph.Node, activation func(*graph.Context, *graph.Node) (*graph.Node, error)) (*graph.Node, error) {
	w, _ := l.Parameter("w_" + name)
	b, _ := l.Parameter("b_" + name)
	wT, err := graph.Transpose(ctx, w, []int{1, 0})
	if err != nil {
		return nil, err
	}
	pre, err := graph.MatMul(ctx, concat, wT)
	if err != nil {
		return nil, err
	}
	bB, err := graph.BroadcastTo(ctx, b, pre.Value().Shape())
	if err != nil {
		return nil, err
	}
	sum, err := graph.Add(ctx, pre, bB)
	if err != nil {
		return nil, err
	}
	return activation(ctx, sum)
}

// Forward consumes one timestep x, shape [batch, InputSize], returning
// the new hidden state, shape [batch, HiddenSize].
func (l *LSTM) Forward(x *graph.Node) (*graph.Node, error) {
	ctx := l.Context()
	batch := x.Value().Shape()[0]
	if l.hidden == nil {
		l.hidden = graph.NewLeaf(tensor.Zeros(tensor.NewShape(batch, l.HiddenSize)), false, "h0")
		l.cell = graph.NewLeaf(tensor.Zeros(tensor.NewShape(batch, l.HiddenSize)), false, "c0")
	}

	concat, err := concatLastAxis(ctx, x, l.hidden)
	if err != nil {
		return nil, err
	}
	inputGate, err := l.gate(ctx, "i", concat, graph.Sigmoid)
	if err != nil {
		return nil, err
	}
	forgetGate, err := l.gate(ctx, "f", concat, graph.Sigmoid)
	if err != nil {
		return nil, err
	}
	candidate, err := l.gate(ctx, "g", concat, graph.Tanh)
	if err != nil {
		return nil, err
	}
	outputGate, err := l.gate(ctx, "o", concat, graph.Sigmoid)
	if err != nil {
		return nil, err
	}

	keep, err := graph.Mul(ctx, forgetGate, l.cell)
	if err != nil {
		return nil, err
	}
	write, err := graph.Mul(ctx, inputGate, candidate)
	if err != nil {
		return nil, err
	}
	newCell, err := graph.Add(ctx, keep, write)
	if err != nil {
		return nil, err
	}
	cellAct, err := graph.Tanh(ctx, newCell)
	if err != nil {
		return nil, err
	}
	newHidden, err := graph.Mul(ctx, outputGate, cellAct)
	if err != nil {
		return nil, err
	}

	l.cell, l.hidden = newCell, newHidden
	return newHidden, nil
}

// TruncateHistory caps BPTT depth for both the hidden and cell state tapes.
func (l *LSTM) TruncateHistory() {
	if l.hidden != nil {
		l.hidden.UnchainBackward()
	}
	if l.cell != nil {
		l.cell.UnchainBackward()
	}
}

// GRU is a single-layer gated recurrent unit cell.
type GRU struct {
	*nn.Module
	InputSize, HiddenSize int
	hidden                *graph.Node
}

// NewGRU builds a GRU cell with Xavier-uniform gate weights.
func NewGRU(inputSize, hiddenSize int, rng *rand.Rand) (*GRU, error) {
	m := nn.New("GRU")
	for _, gate := range []string{"z", "r"} {
		if err := lstmGate(m, gate, inputSize, hiddenSize, rng); err != nil {
			return nil, err
		}
	}
	wCandidate, err := initializers.XavierUniform(1)(tensor.NewShape(hiddenSize, inputSize+hiddenSize), rng)
	if err != nil {
		return nil, err
	}
	if _, err := m.RegisterParameter("w_h", wCandidate); err != nil {
		return nil, err
	}
	if _, err := m.RegisterParameter("b_h", tensor.Zeros(tensor.NewShape(hiddenSize))); err != nil {
		return nil, err
	}
	return &GRU{Module: m, InputSize: inputSize, HiddenSize: hiddenSize}, nil
}

// ResetState clears the carried hidden state.
func (g *GRU) ResetState() { g.hidden = nil }

func (g *GRU) gate(ctx *graph.Context, name string, concat *graph.Node, activation func(*graph.Context, *graph.Node) (*graph.Node, error)) (*graph.Node, error) {
	w, _ := g.Parameter("w_" + name)
	b, _ := g.Parameter("b_" + name)
	wT, err := graph.Transpose(ctx, w, []int{1, 0})
	if err != nil {
		return nil, err
	}
	pre, err := graph.MatMul(ctx, concat, wT)
	if err != nil {
		return nil, err
	}
	bB, err := graph.BroadcastTo(ctx, b, pre.Value().Shape())
	if err != nil {
		return nil, err
	}
	sum, err := graph.Add(ctx, pre, bB)
	if err != nil {
		return nil, err
	}
	return activation(ctx, sum)
}

// Forward consumes one timestep x, shape [batch, InputSize].
func (g *GRU) Forward(x *graph.Node) (*graph.Node, error) {
	ctx := g.Context()
	batch := x.Value().Shape()[0]
	if g.hidden == nil {
		g.hidden = graph.NewLeaf(tensor.Zeros(tensor.NewShape(batch, g.HiddenSize)), false, "h0")
	}

	concat, err := concatLastAxis(ctx, x, g.hidden)
	if err != nil {
		return nil, err
	}
	updateGate, err := g.gate(ctx, "z", concat, graph.Sigmoid)
	if err != nil {
		return nil, err
	}
	resetGate, err := g.gate(ctx, "r", concat, graph.Sigmoid)
	if err != nil {
		return nil, err
	}
	resetHidden, err := graph.Mul(ctx, resetGate, g.hidden)
	if err != nil {
		return nil, err
	}
	candidateConcat, err := concatLastAxis(ctx, x, resetHidden)
	if err != nil {
		return nil, err
	}
	candidate, err := g.gate(ctx, "h", candidateConcat, graph.Tanh)
	if err != nil {
		return nil, err
	}

	one := tensor.Ones(updateGate.Value().Shape())
	oneMinusUpdate, err := graph.Sub(ctx, graph.NewLeaf(one, false, ""), updateGate)
	if err != nil {
		return nil, err
	}
	keepOld, err := graph.Mul(ctx, oneMinusUpdate, g.hidden)
	if err != nil {
		return nil, err
	}
	takeNew, err := graph.Mul(ctx, updateGate, candidate)
	if err != nil {
		return nil, err
	}
	newHidden, err := graph.Add(ctx, keepOld, takeNew)
	if err != nil {
		return nil, err
	}
	g.hidden = newHidden
	return newHidden, nil
}

// TruncateHistory caps BPTT depth for the hidden state tape.
func (g *GRU) TruncateHistory() {
	if g.hidden != nil {
		g.hidden.UnchainBackward()
	}
}

// concatLastAxis concatenates a and b along their last axis (both rank 2,
// equal batch size), used to feed [x, h] into a gate's weight matrix.
func concatLastAxis(ctx *graph.Context, a, b *graph.Node) (*graph.Node, error) {
	aCols, bCols := a.Value().Shape()[1], b.Value().Shape()[1]
	return graph.Call1(ctx, &concatOp{aCols: aCols, bCols: bCols}, a, b)
}

// concatOp builds the [batch, aCols+bCols] concatenation of its two inputs
// on the forward pass and splits the output gradient back into the two
// input widths on the backward pass.
type concatOp struct{ aCols, bCols int }

func (concatOp) Arity() int { return 2 }

func (o *concatOp) Forward(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	a, b := inputs[0], inputs[1]
	batch := a.Shape()[0]
	total := o.aCols + o.bCols
	out := tensor.Zeros(tensor.NewShape(batch, total))
	if err := tensor.SetBlock(out, 0, batch, 0, o.aCols, a); err != nil {
		return nil, err
	}
	if err := tensor.SetBlock(out, 0, batch, o.aCols, total, b); err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func (o *concatOp) Backward(outGrads []*tensor.Tensor) ([]*tensor.Tensor, error) {
	g := outGrads[0]
	batch := g.Shape()[0]
	da, err := tensor.SubArray(g, 0, batch, 0, o.aCols)
	if err != nil {
		return nil, err
	}
	db, err := tensor.SubArray(g, 0, batch, o.aCols, o.aCols+o.bCols)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{da, db}, nil
}
