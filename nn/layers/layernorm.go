package layers

import (
	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

const defaultLayerNormEps = 1e-5

// LayerNorm normalizes over the last axis of its input, independently per
// row, then applies a learned affine transform (gamma, beta) of the same
// width as the normalized axis.
type LayerNorm struct {
	*nn.Module
	Features int
	Eps      float32
}

// NewLayerNorm builds a LayerNorm over the last axis of width features,
// with gamma initialized to 1 and beta to 0.
func NewLayerNorm(features int) (*LayerNorm, error) {
	m := nn.New("LayerNorm")
	if _, err := m.RegisterParameter("gamma", tensor.Ones(tensor.NewShape(features))); err != nil {
		return nil, err
	}
	if _, err := m.RegisterParameter("beta", tensor.Zeros(tensor.NewShape(features))); err != nil {
		return nil, err
	}
	return &LayerNorm{Module: m, Features: features, Eps: defaultLayerNormEps}, nil
}

func broadcastReducedAlong(ctx *graph.Context, reduced *graph.Node, axis int, fullShape tensor.Shape) (*graph.Node, error) {
	withOne := make(tensor.Shape, 0, len(fullShape))
	withOne = append(withOne, reduced.Value().Shape()[:axis]...)
	withOne = append(withOne, 1)
	withOne = append(withOne, reduced.Value().Shape()[axis:]...)
	reshaped, err := graph.Reshape(ctx, reduced, withOne)
	if err != nil {
		return nil, err
	}
	return graph.BroadcastTo(ctx, reshaped, fullShape)
}

// Forward normalizes x over its last axis and applies the learned affine.
func (l *LayerNorm) Forward(x *graph.Node) (*graph.Node, error) {
	ctx := l.Context()
	gamma, _ := l.Parameter("gamma")
	beta, _ := l.Parameter("beta")

	shape := x.Value().Shape()
	axis := shape.Rank() - 1
	n := float32(shape[axis])

	sum, err := graph.SumAxis(ctx, x, axis)
	if err != nil {
		return nil, err
	}
	mean, err := graph.MulScalar(ctx, sum, 1/n)
	if err != nil {
		return nil, err
	}
	meanB, err := broadcastReducedAlong(ctx, mean, axis, shape)
	if err != nil {
		return nil, err
	}
	diff, err := graph.Sub(ctx, x, meanB)
	if err != nil {
		return nil, err
	}
	sq, err := graph.Mul(ctx, diff, diff)
	if err != nil {
		return nil, err
	}
	sumSq, err := graph.SumAxis(ctx, sq, axis)
	if err != nil {
		return nil, err
	}
	variance, err := graph.MulScalar(ctx, sumSq, 1/n)
	if err != nil {
		return nil, err
	}
	varB, err := broadcastReducedAlong(ctx, variance, axis, shape)
	if err != nil {
		return nil, err
	}
	varEps, err := graph.AddScalar(ctx, varB, l.Eps)
	if err != nil {
		return nil, err
	}
	std, err := graph.Sqrt(ctx, varEps)
	if err != nil {
		return nil, err
	}
	normalized, err := graph.Div(ctx, diff, std)
	if err != nil {
		return nil, err
	}
	gammaB, err := graph.BroadcastTo(ctx, gamma, shape)
	if err != nil {
		return nil, err
	}
	betaB, err := graph.BroadcastTo(ctx, beta, shape)
	if err != nil {
		return nil, err
	}
	scaled, err := graph.Mul(ctx, normalized, gammaB)
	if err != nil {
		return nil, err
	}
	return graph.Add(ctx, scaled, betaB)
}
