package layers_test

import (
	"testing"

	"github.com/rz-123/TinyAI-sub001/graph"
	"github.com/rz-123/TinyAI-sub001/nn/layers"
	"github.com/rz-123/TinyAI-sub001/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLeaf(t *testing.T, values []float32, shape tensor.Shape) *graph.Node {
	t.Helper()
	tn, err := tensor.FromArray(values, shape)
	require.NoError(t, err)
	return graph.NewParameter(tn, "")
}

func TestLinearForwardShape(t *testing.T) {
	rng := tensor.NewRNG(1)
	lin, err := layers.NewLinear(3, 4, rng)
	require.NoError(t, err)

	x := mustLeaf(t, []float32{1, 2, 3, 4, 5, 6}, tensor.NewShape(2, 3))
	out, err := lin.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(2, 4), out.Value().Shape())

	require.NoError(t, graph.Backward(out))
	weight, _ := lin.Parameter("weight")
	assert.NotNil(t, weight.Grad())
}

func TestDropoutEvalIsIdentity(t *testing.T) {
	d := layers.NewDropout(0.5, tensor.NewRNG(2))
	d.Eval()
	x := mustLeaf(t, []float32{1, 2, 3}, tensor.NewShape(3))
	out, err := d.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, x.Value().Data(), out.Value().Data())
}

func TestDropoutTrainingZeroesSome(t *testing.T) {
	d := layers.NewDropout(1.0, tensor.NewRNG(2))
	x := mustLeaf(t, []float32{1, 2, 3}, tensor.NewShape(3))
	out, err := d.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0}, out.Value().Data())
}

func TestLayerNormNormalizesRows(t *testing.T) {
	ln, err := layers.NewLayerNorm(4)
	require.NoError(t, err)
	x := mustLeaf(t, []float32{1, 2, 3, 4, 10, 20, 30, 40}, tensor.NewShape(2, 4))
	out, err := ln.Forward(x)
	require.NoError(t, err)

	mean, err := tensor.MeanAxis(out.Value(), 1)
	require.NoError(t, err)
	for _, v := range mean.Data() {
		assert.InDelta(t, 0, v, 1e-4)
	}

	require.NoError(t, graph.Backward(out))
	gamma, _ := ln.Parameter("gamma")
	assert.NotNil(t, gamma.Grad())
}

func TestBatchNormTrainingUpdatesRunningStats(t *testing.T) {
	bn, err := layers.NewBatchNorm1d(3, 0.1)
	require.NoError(t, err)
	x := mustLeaf(t, []float32{1, 2, 3, 4, 5, 6}, tensor.NewShape(2, 3))
	_, err = bn.Forward(x)
	require.NoError(t, err)

	runningMean, _ := bn.Buffer("running_mean")
	assert.NotEqual(t, []float32{0, 0, 0}, runningMean.Data())
}

func TestBatchNormEvalUsesRunningStats(t *testing.T) {
	bn, err := layers.NewBatchNorm1d(2, 0.1)
	require.NoError(t, err)
	bn.Eval()
	x := mustLeaf(t, []float32{1, 2}, tensor.NewShape(1, 2))
	out, err := bn.Forward(x)
	require.NoError(t, err)
	// running_var=1, running_mean=0 by default => (x-0)/sqrt(1+eps) ~= x
	assert.InDelta(t, 1, out.Value().Data()[0], 1e-2)
	assert.InDelta(t, 2, out.Value().Data()[1], 1e-2)
}

func TestEmbeddingGather(t *testing.T) {
	emb, err := layers.NewEmbedding(5, 3, tensor.NewRNG(3))
	require.NoError(t, err)
	out, err := emb.Forward([]int{0, 2})
	require.NoError(t, err)
	assert.Equal(t, tensor.NewShape(2, 3), out.Value().Shape())

	require.NoError(t, graph.Backward(out))
	weight, _ := emb.Parameter("weight")
	assert.NotNil(t, weight.Grad())
}
