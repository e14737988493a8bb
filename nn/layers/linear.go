// Package layers implements the layer catalog: affine and normalization
// layers, recurrent cells, attention, transformer blocks and a
// mixture-of-experts router, each wrapping an *nn.Module.
package layers

import (
	"math/rand"

	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/nn/initializers"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

// Linear applies y = x @ weight^T + bias over the last axis of x.
type Linear struct {
	*nn.Module
	InFeatures, OutFeatures int
}

// NewLinear builds a Linear layer with Kaiming-uniform weight
// initialization (the PyTorch default for a plain affine layer) and a
// zero bias.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) (*Linear, error) {
	return newLinear(inFeatures, outFeatures, rng, initializers.KaimingUniform(1))
}

// NewLinearWithInit builds a Linear layer using a caller-chosen weight
// initializer, for callers wiring Xavier/orthogonal schemes explicitly.
func NewLinearWithInit(inFeatures, outFeatures int, rng *rand.Rand, init initializers.Initializer) (*Linear, error) {
	return newLinear(inFeatures, outFeatures, rng, init)
}

func newLinear(inFeatures, outFeatures int, rng *rand.Rand, init initializers.Initializer) (*Linear, error) {
	m := nn.New("Linear")
	weight, err := init(tensor.NewShape(outFeatures, inFeatures), rng)
	if err != nil {
		return nil, err
	}
	if _, err := m.RegisterParameter("weight", weight); err != nil {
		return nil, err
	}
	if _, err := m.RegisterParameter("bias", tensor.Zeros(tensor.NewShape(outFeatures))); err != nil {
		return nil, err
	}
	return &Linear{Module: m, InFeatures: inFeatures, OutFeatures: outFeatures}, nil
}

// Forward computes x @ weight^T + bias. x must be rank 2, [batch, InFeatures].
func (l *Linear) Forward(x *graph.Node) (*graph.Node, error) {
	ctx := l.Context()
	weight, _ := l.Parameter("weight")
	bias, _ := l.Parameter("bias")

	weightT, err := graph.Transpose(ctx, weight, []int{1, 0})
	if err != nil {
		return nil, err
	}
	projected, err := graph.MatMul(ctx, x, weightT)
	if err != nil {
		return nil, err
	}
	return graph.Add(ctx, projected, bias)
}
